package service

import "github.com/smallbiznis/orgauth/internal/domain"

// UserView is the public user representation. It never carries the password
// or its hash.
type UserView struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// OrgView is the public organisation representation.
type OrgView struct {
	OrgID       string `json:"orgId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AuthPayload bundles a freshly issued token pair with the user profile.
type AuthPayload struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	User         UserView `json:"user"`
}

func newUserView(user domain.User) UserView {
	return UserView{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Phone:     user.Phone,
	}
}

func newOrgView(org domain.Organisation) OrgView {
	return OrgView{
		OrgID:       org.ID,
		Name:        org.Name,
		Description: org.Description,
	}
}
