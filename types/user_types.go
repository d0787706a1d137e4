package types

import "time"

// Requester is the verified caller of a request.
type Requester struct {
	UserID int64
	Role   Role
}

func (r *Requester) IsAdmin() bool {
	return r != nil && r.Role == RoleAdmin
}

// CanActFor reports whether the requester may read or act on userID's records.
func (r *Requester) CanActFor(userID int64) bool {
	if r == nil {
		return false
	}
	return r.IsAdmin() || r.UserID == userID
}

type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"`
	HTML        string    `json:"html"`
	PointsPrice int64     `json:"pointsPrice"`
	Status      string    `json:"status"`
	PublishAt   time.Time `json:"publishAt"`
}

// ArticleView is an article as delivered to a particular requester.
type ArticleView struct {
	Article
	Locked bool `json:"isLocked"`
}
