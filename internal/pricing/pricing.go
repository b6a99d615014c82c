// Package pricing holds the money arithmetic shared by carts and checkout.
package pricing

import "github.com/shopspring/decimal"

// MaxMultiplier caps quantity, portions and plates on a line.
const MaxMultiplier = 1000

// MaxAmount is the largest value the numeric(10,2) money columns hold.
var MaxAmount = decimal.New(9999999999, -2)

// Fits reports whether amount can be stored as a line or order total.
func Fits(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(MaxAmount)
}

// Line is the minimum a priced row needs to expose.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
	Portions  int
	Plates    int
}

// LineTotal is unit_price × quantity × portions × plates, kept at two decimals.
func LineTotal(unitPrice decimal.Decimal, quantity, portions, plates int) decimal.Decimal {
	return unitPrice.
		Mul(decimal.NewFromInt(int64(quantity))).
		Mul(decimal.NewFromInt(int64(portions))).
		Mul(decimal.NewFromInt(int64(plates))).
		Round(2)
}

// Subtotal sums LineTotal over lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineTotal(l.UnitPrice, l.Quantity, l.Portions, l.Plates))
	}
	return sum
}

// OrderTotal adds the delivery fee to the item subtotal.
func OrderTotal(lines []Line, deliveryFee decimal.Decimal) decimal.Decimal {
	return Subtotal(lines).Add(deliveryFee).Round(2)
}

// Format renders an amount the way the API serializes money.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
