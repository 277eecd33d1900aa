package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
)

const (
	// HeaderUserID é preenchido pelo proxy de identidade upstream
	HeaderUserID  = "X-User-ID"
	HeaderStaffID = "X-Staff-ID"
	GuestCookie   = "guest_session"

	guestCookieTTL = 30 * 24 * time.Hour

	ownerKey = "owner"
	staffKey = "staff_id"
)

// resolveOwner identifica o chamador: usuário autenticado pelo header ou
// sessão anônima pelo cookie. Sem nenhum dos dois o Owner fica vazio.
func resolveOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := domain.Owner{}
		if userID := c.GetHeader(HeaderUserID); userID != "" {
			owner = domain.UserOwner(userID)
		} else if guestID, err := c.Cookie(GuestCookie); err == nil && guestID != "" {
			owner = domain.GuestOwner(guestID)
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func ownerFrom(c *gin.Context) domain.Owner {
	if v, ok := c.Get(ownerKey); ok {
		if owner, ok := v.(domain.Owner); ok {
			return owner
		}
	}
	return domain.Owner{}
}

// ensureOwner devolve o Owner do chamador, emitindo uma sessão anônima
// nova na primeira escrita de carrinho
func ensureOwner(c *gin.Context) domain.Owner {
	owner := ownerFrom(c)
	if owner.Validate() == nil {
		return owner
	}
	guestID := uuid.New().String()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(GuestCookie, guestID, int(guestCookieTTL.Seconds()), "/", "", false, true)
	owner = domain.GuestOwner(guestID)
	c.Set(ownerKey, owner)
	return owner
}

func expireGuestCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(GuestCookie, "", -1, "/", "", false, true)
}

// requireUser barra chamadas sem usuário autenticado
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ownerFrom(c).IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
			return
		}
		c.Next()
	}
}

// requireStaff barra rotas administrativas sem identificação da equipe
func requireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		staffID := c.GetHeader(HeaderStaffID)
		if staffID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "staff_required"})
			return
		}
		c.Set(staffKey, staffID)
		c.Next()
	}
}

func staffFrom(c *gin.Context) string {
	return c.GetString(staffKey)
}
