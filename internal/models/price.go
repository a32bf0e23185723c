package models

import (
	"encoding/json"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// priceRe accepts up to 8 integer digits and 2 fractional digits: decimal(10,2).
var priceRe = regexp.MustCompile(`^\d{1,8}(\.\d{1,2})?$`)

// Price is a fixed-point amount stored as BSON Decimal128 and exchanged as a JSON string.
type Price struct {
	primitive.Decimal128
}

// ParsePrice parses a non-negative decimal with at most 10 digits, 2 after the point.
func ParsePrice(s string) (Price, error) {
	if !priceRe.MatchString(s) {
		return Price{}, fmt.Errorf("invalid price %q: expected up to 8 digits and 2 decimal places", s)
	}
	d, err := primitive.ParseDecimal128(s)
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return Price{d}, nil
}

// MustParsePrice is ParsePrice for constants and tests.
func MustParsePrice(s string) Price {
	p, err := ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Price) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("price must be a string: %w", err)
	}
	parsed, err := ParsePrice(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Price) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(p.Decimal128)
}

func (p *Price) UnmarshalBSONValue(t bsontype.Type, raw []byte) error {
	var d primitive.Decimal128
	if err := (bson.RawValue{Type: t, Value: raw}).Unmarshal(&d); err != nil {
		return fmt.Errorf("decoding price: %w", err)
	}
	p.Decimal128 = d
	return nil
}
