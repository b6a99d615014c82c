package enums

import "slices"

// DeliveryTypeName is the fixed set of delivery speeds offered.
type DeliveryTypeName string

const (
	DeliveryTypeRegular DeliveryTypeName = "regular"
	DeliveryTypeExpress DeliveryTypeName = "express"
)

var validDeliveryTypeNames = []DeliveryTypeName{
	DeliveryTypeRegular,
	DeliveryTypeExpress,
}

var deliveryTypeLabels = map[DeliveryTypeName]string{
	DeliveryTypeRegular: "Regular Delivery",
	DeliveryTypeExpress: "Express Delivery",
}

// DeliveryTypeNames returns the canonical names in display order.
func DeliveryTypeNames() []DeliveryTypeName {
	out := make([]DeliveryTypeName, len(validDeliveryTypeNames))
	copy(out, validDeliveryTypeNames)
	return out
}

// String implements fmt.Stringer.
func (d DeliveryTypeName) String() string {
	return string(d)
}

// Label returns the human readable name.
func (d DeliveryTypeName) Label() string {
	if label, ok := deliveryTypeLabels[d]; ok {
		return label
	}
	return string(d)
}

// IsValid reports whether the value is a known DeliveryTypeName.
func (d DeliveryTypeName) IsValid() bool {
	return slices.Contains(validDeliveryTypeNames, d)
}

// ParseDeliveryTypeName converts raw input into a DeliveryTypeName.
func ParseDeliveryTypeName(value string) (DeliveryTypeName, error) {
	return parse(validDeliveryTypeNames, value, "delivery type")
}
