package dxedge

// FormatName is the format tag attached to every decoded code.
const FormatName = "DXFilmEdge"

// Symbology identifies the symbology of a result in the "]cm" form. DX edge
// codes carry no check character, hence modifier '0'.
type Symbology struct {
	Code     byte
	Modifier byte
}

// String returns the identifier as "]I0".
func (s Symbology) String() string {
	return string([]byte{']', s.Code, s.Modifier})
}

// Identifier is the symbology identifier of DX edge codes.
var Identifier = Symbology{Code: 'I', Modifier: '0'}

// Result is one decoded data track.
type Result struct {
	Text       string `json:"text"`
	Product    int    `json:"product"`
	Generation int    `json:"generation"`
	// Frame and HalfFrameLetter are only set when HasHalfFrame is true.
	Frame           int  `json:"frame,omitempty"`
	HalfFrameLetter bool `json:"half_frame_letter,omitempty"`
	HasHalfFrame    bool `json:"has_half_frame"`

	RowNumber int       `json:"row_number"`
	XStart    int       `json:"x_start"`
	XStop     int       `json:"x_stop"`
	Format    string    `json:"format"`
	Symbology Symbology `json:"-"`
}

// SymbologyIdentifier returns the "]I0" identifier of the result.
func (r Result) SymbologyIdentifier() string { return r.Symbology.String() }
