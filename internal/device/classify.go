package device

import "strings"

// appleProducts maps USB product IDs under the Apple vendor to display
// names. Devices under the configured vendor but missing from this table are
// still usable; the name is cosmetic.
var appleProducts = map[string]string{
	"1209": "iPod (5th generation)",
	"1261": "iPod classic",
	"1290": "iPhone",
	"1297": "iPhone 3GS",
	"12a8": "iPhone",
	"12ab": "iPad",
	"12aa": "iPod touch",
}

// DisplayName picks the best human-readable name for a device: the
// bridge-reported name when present, then the product table, then the UDID.
func DisplayName(info Info, vendorID string) string {
	if name := strings.TrimSpace(info.Name); name != "" {
		return name
	}
	if strings.EqualFold(info.VendorID, vendorID) {
		if name, ok := appleProducts[strings.ToLower(info.ProductID)]; ok {
			return name
		}
	}
	if info.UDID != "" {
		return info.UDID
	}
	return "Unknown Device"
}

// Recognized reports whether the device belongs to the configured vendor.
// Devices from other vendors are ignored entirely; devices from the
// configured vendor with an unknown product are still recognized but may
// warrant an informational notice.
func Recognized(info Info, vendorID string) bool {
	if vendorID == "" {
		return true
	}
	if info.VendorID == "" {
		// The bridge only enumerates devices it can talk to.
		return true
	}
	return strings.EqualFold(info.VendorID, vendorID)
}

// KnownProduct reports whether the product ID appears in the product table.
func KnownProduct(info Info) bool {
	_, ok := appleProducts[strings.ToLower(info.ProductID)]
	return ok
}
