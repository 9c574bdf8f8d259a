package provider

// IdentityRecord is the verified profile the identity provider resolves from a
// national identity number. Records are immutable once fetched; the same
// number may be re-fetched but is never mutated locally.
type IdentityRecord struct {
	NationalID  string `json:"nationalId"`
	FullName    string `json:"fullName"`
	Address     string `json:"address"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}
