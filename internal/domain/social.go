package domain

// FriendEdge is stored at friends/{owner}/{friend}
type FriendEdge struct {
	Username string `json:"username"`
	Status   string `json:"status,omitempty"`
}

// FriendRequest is stored at friendRequests/{recipient}/{requester}
type FriendRequest struct {
	Username string `json:"username"`
}

// FriendView is a friend as listed to the edge owner
type FriendView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
	Status   string `json:"status"`
}

// RequestView is a pending incoming friend request
type RequestView struct {
	RequesterID string `json:"requester_id"`
	Username    string `json:"username"`
}
