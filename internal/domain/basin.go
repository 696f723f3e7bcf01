package domain

// Basin represents the ocean basin a storm belongs to.
type Basin string

const (
	BasinAtlantic    Basin = "AL"
	BasinEastPacific Basin = "EP"
)

// String returns the string representation of Basin.
func (b Basin) String() string {
	return string(b)
}

// IsValid checks if the basin is a supported value.
func (b Basin) IsValid() bool {
	return b == BasinAtlantic || b == BasinEastPacific
}

// BasinFromCode derives the basin from an ATCF storm code prefix.
func BasinFromCode(code string) (Basin, bool) {
	if len(code) < 2 {
		return "", false
	}
	b := Basin(code[:2])
	return b, b.IsValid()
}
