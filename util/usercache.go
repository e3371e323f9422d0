package util

import (
	"strconv"
	"time"

	cache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// Short-lived userID -> email cache so the endpoint audit logger does not hit
// the users table on every request.
var userEmailCache = cache.New(15*time.Minute, 5*time.Minute)

// GetUserEmail returns the email for userID using the cache, falling back to DB.
func GetUserEmail(db *gorm.DB, userID uint) string {
	if userID == 0 {
		return ""
	}
	key := strconv.FormatUint(uint64(userID), 10)
	if v, ok := userEmailCache.Get(key); ok {
		if email, ok := v.(string); ok {
			return email
		}
	}
	if db == nil {
		return ""
	}
	var u struct{ Email string }
	if err := db.Table("users").Select("email").Where("id = ?", userID).Take(&u).Error; err != nil {
		return ""
	}
	if u.Email != "" {
		userEmailCache.Set(key, u.Email, cache.DefaultExpiration)
	}
	return u.Email
}
