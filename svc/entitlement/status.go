package entitlement

// Access is the bucket a subscription status falls into.
type Access int

const (
	// AccessUnknown statuses are logged and ignored, so a status introduced by
	// the provider later neither grants nor revokes anything.
	AccessUnknown Access = iota
	AccessEntitled
	AccessRevoked
)

func (a Access) String() string {
	switch a {
	case AccessEntitled:
		return "entitled"
	case AccessRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Classify maps a raw status onto exactly one Access bucket.
func Classify(status Status) Access {
	switch status {
	case StatusActive, StatusTrialing:
		return AccessEntitled
	case StatusCanceled, StatusUnpaid, StatusIncompleteExpired, StatusPastDue:
		return AccessRevoked
	default:
		return AccessUnknown
	}
}
