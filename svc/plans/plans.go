// Package plans loads the plan catalog that maps provider products to
// internal plans and quotas.
package plans

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/artshare/svc/entitlement"
)

var (
	ErrFailedToReadCatalog  = errors.New("plans: failed to read catalog")
	ErrFailedToParseCatalog = errors.New("plans: failed to parse catalog")
	ErrInvalidCatalog       = errors.New("plans: invalid catalog")
)

type catalog struct {
	Plans []entitlement.Plan `yaml:"plans"`
}

// Load reads and validates the catalog file at path.
func Load(path string) ([]entitlement.Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToReadCatalog, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes and validates a catalog. Unknown fields are rejected.
//
//	plans:
//	  - id: basic
//	    name: Basic
//	    provider_product_id: prod_basic
//	    quotas:
//	      uploads: 50
//	      blogs: -1
func Parse(r io.Reader) ([]entitlement.Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c catalog
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrFailedToParseCatalog, err)
	}
	if err := Validate(c.Plans); err != nil {
		return nil, err
	}
	return c.Plans, nil
}

// Validate checks that ids and product ids are present and unique and that
// quotas are non-negative or Unlimited.
func Validate(plans []entitlement.Plan) error {
	if len(plans) == 0 {
		return fmt.Errorf("%w: no plans", ErrInvalidCatalog)
	}

	ids := make(map[string]struct{}, len(plans))
	products := make(map[string]struct{}, len(plans))
	var errs []error
	for i, p := range plans {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("plan #%d: missing id", i))
			continue
		}
		if _, dup := ids[p.ID]; dup {
			errs = append(errs, fmt.Errorf("plan %s: duplicate id", p.ID))
		}
		ids[p.ID] = struct{}{}

		if p.ProviderProductID == "" {
			errs = append(errs, fmt.Errorf("plan %s: missing provider_product_id", p.ID))
		} else if _, dup := products[p.ProviderProductID]; dup {
			errs = append(errs, fmt.Errorf("plan %s: product %s is mapped twice", p.ID, p.ProviderProductID))
		}
		products[p.ProviderProductID] = struct{}{}

		for res, limit := range p.Quotas {
			if limit < entitlement.Unlimited {
				errs = append(errs, fmt.Errorf("plan %s: quota %s is %d", p.ID, res, limit))
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidCatalog}, errs...)...)
	}
	return nil
}
