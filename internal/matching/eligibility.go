package matching

import "github.com/printhub/printhub-be/internal/domain"

// CapabilityPolicy decides whether a vendor's declared capabilities can
// service a job's requirements. The production policy is permissive
// pending real capability data from vendor onboarding; it is a named,
// swappable hook rather than a hard-coded assumption.
type CapabilityPolicy func(vendor domain.Vendor, req domain.Requirements) bool

// PermissiveCapabilityPolicy treats every vendor as universally
// capable. Default policy.
func PermissiveCapabilityPolicy(vendor domain.Vendor, req domain.Requirements) bool {
	return true
}

// DeclaredCapabilityPolicy checks the vendor's declared paper sizes and
// color/duplex support against the job's requirements.
func DeclaredCapabilityPolicy(vendor domain.Vendor, req domain.Requirements) bool {
	if req.Color && !vendor.SupportsColor {
		return false
	}
	if req.Duplex && !vendor.SupportsDuplex {
		return false
	}
	for _, size := range vendor.PaperSizes {
		if size == req.PaperSize {
			return true
		}
	}
	return false
}

// Eligible filters vendors down to those active, open, verified, and
// capable of the job's requirements per the given policy. Eligibility
// is a pure predicate over the snapshot; distance is not considered
// here.
func Eligible(vendors []domain.Vendor, req domain.Requirements, policy CapabilityPolicy) []domain.Vendor {
	if policy == nil {
		policy = PermissiveCapabilityPolicy
	}

	eligible := make([]domain.Vendor, 0, len(vendors))
	for _, v := range vendors {
		if !v.Active || !v.StoreOpen || !v.EmailVerified {
			continue
		}
		if !policy(v, req) {
			continue
		}
		eligible = append(eligible, v)
	}
	return eligible
}
