package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

var errNoIdentity = errors.New("no authenticated user in context")

// getUserID pulls the authenticated user's ID out of the Echo context.
// JWTAuth stores the sub claim as parsed by the JWT library, which
// decodes JSON numbers as float64; string subjects are tolerated too.
func getUserID(c echo.Context) (uint64, error) {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v), nil
	case uint64:
		return v, nil
	case int64:
		return uint64(v), nil
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, errNoIdentity
		}
		return n, nil
	}
	return 0, errNoIdentity
}

// pathID parses a numeric path parameter such as :id.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}
