package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
)

// RequireRole checks that the authenticated principal holds one of roles.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}

		if len(roles) == 1 && roles[0] == model.RoleStudent {
			response.AbortFail(c, http.StatusForbidden, response.ErrStudentAccessOnly)
			return
		}
		response.AbortFail(c, http.StatusForbidden, response.ErrStaffAccessOnly)
	}
}

// RequireStudent admits student principals only.
func RequireStudent() gin.HandlerFunc {
	return RequireRole(model.RoleStudent)
}

// RequireStaff admits teachers, proctors and admins.
func RequireStaff() gin.HandlerFunc {
	return RequireRole(model.RoleTeacher, model.RoleProctor, model.RoleAdmin)
}
