package types

import (
	"database/sql/driver"
	"encoding/json"
)

// ProductImage is a hosted image reference on a product.
type ProductImage struct {
	URL     string `json:"url" validate:"required"`
	AltText string `json:"altText,omitempty"`
}

// ProductImages is persisted as a JSONB array.
type ProductImages []ProductImage

// Value serializes the images to JSON.
func (p ProductImages) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSONB into the images slice.
func (p *ProductImages) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded ProductImages
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*p = decoded
	return nil
}

// First returns the url of the leading image, or "".
func (p ProductImages) First() string {
	if len(p) == 0 {
		return ""
	}
	return p[0].URL
}

type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Value serializes the dimensions to JSON.
func (d *Dimensions) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes a JSON object into the dimensions.
func (d *Dimensions) Scan(value interface{}) error {
	if value == nil {
		*d = Dimensions{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, d)
}
