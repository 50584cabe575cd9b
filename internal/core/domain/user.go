package domain

import "strconv"

// UserID is the stable chat identity of an end user (a Telegram chat id).
type UserID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}
