package domain

import "fmt"

// Owner identifica o dono de um carrinho: uma sessão anônima (GuestID) ou
// uma identidade autenticada (UserID). Nunca os dois.
type Owner struct {
	UserID  string `json:"user_id,omitempty"`
	GuestID string `json:"guest_id,omitempty"`
}

// UserOwner cria um Owner autenticado
func UserOwner(userID string) Owner {
	return Owner{UserID: userID}
}

// GuestOwner cria um Owner anônimo
func GuestOwner(guestID string) Owner {
	return Owner{GuestID: guestID}
}

func (o Owner) IsAuthenticated() bool {
	return o.UserID != ""
}

// Validate garante que exatamente uma das identidades está preenchida
func (o Owner) Validate() error {
	if (o.UserID == "") == (o.GuestID == "") {
		return fmt.Errorf("owner must be either a user or a guest session: %w", ErrUnauthorizedOwner)
	}
	return nil
}

func (o Owner) String() string {
	if o.UserID != "" {
		return "user:" + o.UserID
	}
	return "guest:" + o.GuestID
}
