package middleware

// identity.go holds helpers shared across middleware files for
// identifying the caller. JWTAuth stores the token's sub claim under
// "user_id"; depending on the JSON decoder it may surface as a string,
// float64 or integer, so currentUserID normalizes all of them.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user's ID as a string, or
// "anon" for unauthenticated requests. Used to build per-user rate
// limit keys.
func currentUserID(c echo.Context) string {
    v := c.Get("user_id")
    if v == nil {
        return "anon"
    }
    switch t := v.(type) {
    case string:
        if t != "" {
            return t
        }
    case float64:
        return strconv.FormatUint(uint64(t), 10)
    case uint64:
        return strconv.FormatUint(t, 10)
    case int64:
        return strconv.FormatInt(t, 10)
    }
    return "anon"
}
