package models

import "time"

// Vehicle is a denormalized fitment tuple. Two vehicles with the same seven
// fields are the same vehicle; a unique index over the tuple enforces that.
type Vehicle struct {
	Base      `bson:",inline"`
	Make      string    `bson:"make" json:"make"`
	Model     string    `bson:"model" json:"model"`
	Year      int       `bson:"year" json:"year"`
	BodyStyle string    `bson:"body_style" json:"body_style"`
	Trim      string    `bson:"trim" json:"trim"`
	Gearbox   string    `bson:"gearbox" json:"gearbox"`
	Fuel      string    `bson:"fuel" json:"fuel"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Complete reports whether every fitment field is populated.
func (v *Vehicle) Complete() bool {
	return v.Make != "" && v.Model != "" && v.Year != 0 &&
		v.BodyStyle != "" && v.Trim != "" && v.Gearbox != "" && v.Fuel != ""
}
