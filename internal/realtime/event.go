package realtime

import "github.com/lapasovanvarbek/mini-twitter/internal/model"

// 服务端推送事件类型
const (
	EventConnected   = "connected"
	EventNewPost     = "new-post"
	EventPostLiked   = "post-liked"
	EventMentioned   = "mentioned"
	EventNewFollower = "new-follower"
)

// Event 推送事件：type 判别字段 + 各事件专属载荷
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type connectedPayload struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type newPostPayload struct {
	Post *model.Post `json:"post"`
}

type postLikedPayload struct {
	PostID string             `json:"post_id"`
	Liker  model.UserSnapshot `json:"liker"`
}

type mentionedPayload struct {
	PostID string             `json:"post_id"`
	Author model.UserSnapshot `json:"author"`
}

type newFollowerPayload struct {
	Follower model.UserSnapshot `json:"follower"`
}

func Connected(userID, username string) Event {
	return Event{Type: EventConnected, Payload: connectedPayload{
		Message: "connected to mini-twitter stream", UserID: userID, Username: username,
	}}
}

func NewPost(post *model.Post) Event {
	return Event{Type: EventNewPost, Payload: newPostPayload{Post: post}}
}

func PostLiked(postID string, liker model.UserSnapshot) Event {
	return Event{Type: EventPostLiked, Payload: postLikedPayload{PostID: postID, Liker: liker}}
}

func Mentioned(postID string, author model.UserSnapshot) Event {
	return Event{Type: EventMentioned, Payload: mentionedPayload{PostID: postID, Author: author}}
}

func NewFollower(follower model.UserSnapshot) Event {
	return Event{Type: EventNewFollower, Payload: newFollowerPayload{Follower: follower}}
}
