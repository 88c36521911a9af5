package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

var _ accountsAPI = (*Client)(nil)

type tokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// obtainTokenPair calls the login endpoint outside the refresh interception.
func (c *Client) obtainTokenPair(ctx context.Context, username, password string) (string, string, error) {
	body := map[string]string{"username": username, "password": password}

	var pair tokenPairResponse
	err := c.do(ctx, c.raw, http.MethodPost, LoginPath, nil, body, &pair)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) &&
			(statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusBadRequest) {
			return "", "", &AuthenticationError{StatusCode: statusErr.StatusCode, Detail: statusErr.Detail}
		}
		return "", "", err
	}
	if pair.Access == "" {
		return "", "", fmt.Errorf("login response carried no access token")
	}
	return pair.Access, pair.Refresh, nil
}

func (c *Client) refreshAccessToken(ctx context.Context, refresh string) (string, error) {
	var pair tokenPairResponse
	if err := c.do(ctx, c.raw, http.MethodPost, RefreshPath, nil, map[string]string{"refresh": refresh}, &pair); err != nil {
		return "", err
	}
	return pair.Access, nil
}

// fetchIdentity goes through the intercepted client: an expired access token is renewed.
func (c *Client) fetchIdentity(ctx context.Context) (*Identity, error) {
	var identity Identity
	if err := c.Get(ctx, IdentityPath, nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Login authenticates and loads the identity. Shorthand for Session().Login.
func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.session.Login(ctx, username, password)
}

// Logout drops the session. Shorthand for Session().Logout.
func (c *Client) Logout() {
	c.session.Logout()
}

// Me fetches the identity from the server and replaces the cached copy.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	return c.session.FetchIdentity(ctx)
}

// ChangePasswordInput holds the change-password form.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// MinPasswordLength is the server-enforced minimum for new passwords.
const MinPasswordLength = 8

// Validate applies the server's rules locally so obvious mistakes never leave the machine.
func (in ChangePasswordInput) Validate() error {
	if in.CurrentPassword == "" {
		return fmt.Errorf("current password is required")
	}
	if len(in.NewPassword) < MinPasswordLength {
		return fmt.Errorf("new password must have at least %d characters", MinPasswordLength)
	}
	if in.NewPassword != in.ConfirmPassword {
		return fmt.Errorf("passwords do not match")
	}
	return nil
}

// ChangePassword updates the authenticated account's password.
func (c *Client) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	return c.Post(ctx, ChangePasswordPath, input, nil)
}

// User is an account as listed by the users endpoint.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role,omitempty"`
}

// ListUsersOptions filters the users listing. The server defaults to accounts with no
// athlete linked; set AllUsers to list everyone.
type ListUsersOptions struct {
	Search   string
	Ordering string
	AllUsers bool
	// Include adds one account to the result regardless of the unlinked filter.
	Include int64
}

func (o ListUsersOptions) query() url.Values {
	q := url.Values{}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.Ordering != "" {
		q.Set("ordering", o.Ordering)
	}
	if o.AllUsers {
		q.Set("unlinked", "false")
	}
	if o.Include > 0 {
		q.Set("include", strconv.FormatInt(o.Include, 10))
	}
	return q
}

// ListUsers returns accounts visible to coaches and admins.
func (c *Client) ListUsers(ctx context.Context, opts ListUsersOptions) ([]User, error) {
	var users []User
	if err := c.Get(ctx, UsersPath, opts.query(), &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUserInput holds the fields for a new account.
type CreateUserInput struct {
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      Role   `json:"role,omitempty"`
}

// CreateUser registers a new account (coach/admin only).
func (c *Client) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	if input.Username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if input.Password == "" {
		return nil, fmt.Errorf("password is required")
	}
	if input.Role != "" && !input.Role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", input.Role)
	}

	var user User
	if err := c.Post(ctx, UsersPath, input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
