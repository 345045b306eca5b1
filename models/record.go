package models

// ValueKind tells whether a source column held usable text.
type ValueKind int

const (
	KindMissing ValueKind = iota
	KindText
	KindMalformed
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMalformed:
		return "malformed"
	default:
		return "missing"
	}
}

// Value is a loosely typed source column after classification:
// either usable text, absent (NULL), or present but unusable
// (wrong type, failed base64/UTF-8 decode).
type Value struct {
	Kind ValueKind
	Str  string
}

func Text(s string) Value { return Value{Kind: KindText, Str: s} }
func Missing() Value      { return Value{Kind: KindMissing} }
func Malformed() Value    { return Value{Kind: KindMalformed} }

// AsText returns the string and true only for KindText.
func (v Value) AsText() (string, bool) {
	if v.Kind != KindText {
		return "", false
	}
	return v.Str, true
}

// RawRecord holds one listing as read from the source, before any cleanup.
type RawRecord struct {
	ItemID         string
	Title          Value
	Brand          Value
	CreatedAt      int64
	MainCategory   string
	SubCategory    string
	Level3Category string
	MainCat        string
	SubCat         string
	Level3Cat      string
}

// Record is a listing whose title is normalised and whose brand survived
// classification. BrandCount is zero until a frequency table is joined.
type Record struct {
	ItemID         string
	Title          string
	Brand          string
	CreatedAt      int64
	MainCategory   string
	SubCategory    string
	Level3Category string
	MainCat        string
	SubCat         string
	Level3Cat      string
	BrandCount     int
}

// Generation names one of the two output sets of a run.
type Generation string

const (
	GenerationRaw     Generation = "raw"
	GenerationCleaned Generation = "cleaned"
)

// Partition is a disjoint train/test split covering its input exactly.
// Train is oldest first, Test is newest first.
type Partition struct {
	Train []Record
	Test  []Record
}

// Len returns the total number of records on both sides.
func (p Partition) Len() int {
	return len(p.Train) + len(p.Test)
}
