package arcade

import (
	"context"
	"fmt"

	"github.com/arcade-social/internal/auth"
	"github.com/arcade-social/internal/dispatch"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/tree"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type rename struct {
	Username string `json:"username"`
}

type scoreInput struct {
	Game  string `json:"game"`
	Score int64  `json:"score"`
	Name  string `json:"name"`
}

type gameInput struct {
	Game string `json:"game"`
}

type viewInput struct {
	View string `json:"view"`
}

type usernameInput struct {
	Username string `json:"username"`
}

type requesterInput struct {
	RequesterID string `json:"requesterId"`
}

type friendGameInput struct {
	FriendID string `json:"friendId"`
	Game     string `json:"game"`
}

type friendInput struct {
	FriendID string `json:"friendId"`
}

type messageInput struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

type messagesInput struct {
	ChatID string `json:"chatId"`
	Limit  int    `json:"limit"`
}

type limitInput struct {
	Limit int `json:"limit"`
}

type signedInUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type keyResult struct {
	ID string `json:"id"`
}

type viewResult struct {
	View          string `json:"view"`
	Subscriptions int    `json:"subscriptions"`
}

func (c *Client) register() {
	d := c.dispatcher

	d.MustRegister("auth.register", dispatch.Typed(func(ctx context.Context, in auth.RegisterRequest) (any, error) {
		u, err := c.Auth.Register(ctx, in)
		if err != nil {
			return nil, err
		}
		return signedInUser{UserID: u.ID, Username: u.Username}, nil
	}))
	d.MustRegister("auth.login", dispatch.Typed(func(ctx context.Context, in credentials) (any, error) {
		u, err := c.Auth.Login(ctx, in.Email, in.Password)
		if err != nil {
			return nil, err
		}
		return signedInUser{UserID: u.ID, Username: u.Username}, nil
	}))
	d.MustRegister("auth.logout", dispatch.NoPayload(func(context.Context) (any, error) {
		c.Auth.SignOut()
		return nil, nil
	}))
	d.MustRegister("profile.get", dispatch.NoPayload(func(ctx context.Context) (any, error) {
		return c.Auth.Profile(ctx)
	}))
	d.MustRegister("profile.rename", dispatch.Typed(func(ctx context.Context, in rename) (any, error) {
		return nil, c.Auth.ChangeUsername(ctx, in.Username)
	}))
	d.MustRegister("profile.history", dispatch.Typed(func(ctx context.Context, in limitInput) (any, error) {
		return c.ScoreHistory(ctx, in.Limit)
	}))

	d.MustRegister("score.submit", dispatch.Typed(func(ctx context.Context, in scoreInput) (any, error) {
		id, err := c.Leaderboard.Submit(ctx, in.Game, in.Score, in.Name)
		if err != nil {
			return nil, err
		}
		return keyResult{ID: id}, nil
	}))
	d.MustRegister("leaderboard.top", dispatch.Typed(func(ctx context.Context, in gameInput) (any, error) {
		return c.app.board.Top(ctx, in.Game)
	}))

	d.MustRegister("view.open", dispatch.Typed(func(ctx context.Context, in viewInput) (any, error) {
		return c.enter(ctx, in.View)
	}))
	d.MustRegister("view.close", dispatch.NoPayload(func(context.Context) (any, error) {
		c.scope.Release()
		return viewResult{}, nil
	}))

	d.MustRegister("friends.list", dispatch.NoPayload(func(ctx context.Context) (any, error) {
		return c.Friends.ListFriends(ctx)
	}))
	d.MustRegister("friends.requests", dispatch.NoPayload(func(ctx context.Context) (any, error) {
		return c.Friends.ListIncoming(ctx)
	}))
	d.MustRegister("friends.request", dispatch.Typed(func(ctx context.Context, in usernameInput) (any, error) {
		return nil, c.Friends.SendRequest(ctx, in.Username)
	}))
	d.MustRegister("friends.accept", dispatch.Typed(func(ctx context.Context, in requesterInput) (any, error) {
		return nil, c.Friends.Accept(ctx, in.RequesterID)
	}))
	d.MustRegister("friends.reject", dispatch.Typed(func(ctx context.Context, in requesterInput) (any, error) {
		return nil, c.Friends.Reject(ctx, in.RequesterID)
	}))
	d.MustRegister("friends.invite", dispatch.Typed(func(ctx context.Context, in friendGameInput) (any, error) {
		id, err := c.Friends.InviteToGame(ctx, in.FriendID, in.Game)
		if err != nil {
			return nil, err
		}
		return keyResult{ID: id}, nil
	}))

	d.MustRegister("chats.list", dispatch.NoPayload(func(ctx context.Context) (any, error) {
		return c.Chat.ListConversations(ctx)
	}))
	d.MustRegister("chats.open", dispatch.Typed(func(ctx context.Context, in friendInput) (any, error) {
		id, err := c.Messenger.OpenChat(ctx, in.FriendID)
		if err != nil {
			return nil, err
		}
		return keyResult{ID: id}, nil
	}))
	d.MustRegister("chats.send", dispatch.Typed(func(ctx context.Context, in messageInput) (any, error) {
		id, err := c.Messenger.SendMessage(ctx, in.ChatID, in.Text)
		if err != nil {
			return nil, err
		}
		return keyResult{ID: id}, nil
	}))
	d.MustRegister("chats.messages", dispatch.Typed(func(ctx context.Context, in messagesInput) (any, error) {
		return c.Messenger.Messages(ctx, in.ChatID, in.Limit)
	}))
	d.MustRegister("chats.invite", dispatch.Typed(func(ctx context.Context, in friendGameInput) (any, error) {
		id, err := c.Chat.Invite(ctx, in.FriendID, in.Game)
		if err != nil {
			return nil, err
		}
		return keyResult{ID: id}, nil
	}))

	d.MustRegister("notifications.list", dispatch.Typed(func(ctx context.Context, in limitInput) (any, error) {
		return c.Notifications.ListRecent(ctx, in.Limit)
	}))

	d.MustRegister("preferences.get", dispatch.NoPayload(func(ctx context.Context) (any, error) {
		return c.Preferences.Load(ctx)
	}))
	d.MustRegister("preferences.favorite", dispatch.Typed(func(ctx context.Context, in gameInput) (any, error) {
		return c.Preferences.ToggleFavorite(ctx, in.Game)
	}))
	d.MustRegister("preferences.pin", dispatch.Typed(func(ctx context.Context, in gameInput) (any, error) {
		return c.Preferences.TogglePin(ctx, in.Game)
	}))

	d.MustRegister("presence.count", dispatch.NoPayload(func(ctx context.Context) (any, error) {
		return c.app.tracker.CountOnline(ctx)
	}))
}

// enter switches the client to view. Only the leaderboard view holds live
// subscriptions, one per game.
func (c *Client) enter(ctx context.Context, view string) (viewResult, error) {
	var acquire func() ([]tree.Subscription, error)
	switch view {
	case ViewLeaderboard:
		acquire = func() ([]tree.Subscription, error) {
			return c.watchBoards(ctx)
		}
	case ViewFriends, ViewChats, ViewProfile, ViewGames:
	default:
		return viewResult{}, fmt.Errorf("%w: unknown view %q", domain.ErrInvalidRequest, view)
	}

	if err := c.scope.Enter(view, acquire); err != nil {
		return viewResult{}, err
	}
	name, n := c.scope.View()
	return viewResult{View: name, Subscriptions: n}, nil
}

func (c *Client) watchBoards(ctx context.Context) ([]tree.Subscription, error) {
	games := c.app.board.Games()
	subs := make([]tree.Subscription, 0, len(games))
	for _, game := range games {
		game := game
		sub, err := c.app.board.Watch(ctx, game, func(entries []domain.RankedEntry) {
			c.pusher.Push(EventLeaderboardUpdate, LeaderboardUpdate{Game: game, Entries: entries})
		})
		if err != nil {
			return subs, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
