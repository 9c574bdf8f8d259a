package session

// AuthSession is the authenticated session derived from a completed
// onboarding pipeline. It is written wholesale on login and deleted on
// logout; it only ever exists after a successful OTP verification.
type AuthSession struct {
	UserID          string `json:"userId"`
	FullName        string `json:"fullName"`
	MobileNumber    string `json:"mobileNumber"`
	Email           string `json:"email,omitempty"`
	NicNumber       string `json:"nicNumber,omitempty"`
	ProfileComplete bool   `json:"profileComplete"`
	UserType        string `json:"userType"`
}

// Partial carries the fields an update may change; nil fields are untouched.
type Partial struct {
	FullName        *string
	MobileNumber    *string
	Email           *string
	NicNumber       *string
	ProfileComplete *bool
	UserType        *string
}

func (p Partial) apply(s *AuthSession) {
	if p.FullName != nil {
		s.FullName = *p.FullName
	}
	if p.MobileNumber != nil {
		s.MobileNumber = *p.MobileNumber
	}
	if p.Email != nil {
		s.Email = *p.Email
	}
	if p.NicNumber != nil {
		s.NicNumber = *p.NicNumber
	}
	if p.ProfileComplete != nil {
		s.ProfileComplete = *p.ProfileComplete
	}
	if p.UserType != nil {
		s.UserType = *p.UserType
	}
}
