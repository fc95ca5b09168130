package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/openfroyo/esinstall/pkg/model"
)

// Account is a built-in user and the password it should end up with.
type Account struct {
	User     string
	Password string
}

// BuiltinAccounts returns the accounts to rotate, in order. The first one
// is the account later requests authenticate as.
func BuiltinAccounts(m *model.Installation) []Account {
	return []Account{
		{User: "elastic", Password: m.XPack.ElasticUserPassword},
		{User: "kibana", Password: m.XPack.KibanaUserPassword},
		{User: "logstash_system", Password: m.XPack.LogstashSystemUserPassword},
	}
}

// PutLicense uploads a license document. On a non-2xx answer the response
// body is logged before failing.
func (c *Client) PutLicense(ctx context.Context, password string, license []byte) error {
	c.progress(100, "Updating license")
	if password != "" {
		c.log("Using Bootstrap password to apply license")
	}

	resp, err := c.do(ctx, http.MethodPut, "_xpack/license?acknowledge=true", password, bytes.NewReader(license))
	if err != nil {
		return fmt.Errorf("failed to upload license: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if body, _ := io.ReadAll(resp.Body); len(body) > 0 {
			c.log(string(body))
		}
		return statusError(resp, "put_license")
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.progress(200, "Updated license")
	return nil
}

type passwordBody struct {
	Password string `json:"password"`
}

// SetPassword changes user's password, authenticating as the bootstrap
// user with actingPassword.
func (c *Client) SetPassword(ctx context.Context, actingPassword, user, newPassword string) error {
	c.progress(100, fmt.Sprintf("Changing password for '%s'", user))

	body, err := json.Marshal(passwordBody{Password: newPassword})
	if err != nil {
		return fmt.Errorf("failed to encode password request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, fmt.Sprintf("_xpack/security/user/%s/_password", user), actingPassword, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to set password for %s: %w", user, err)
	}
	if err := ensureSuccess(resp, "set_password"); err != nil {
		return fmt.Errorf("failed to set password for %s: %w", user, err)
	}

	c.progress(200, fmt.Sprintf("Changed password for user '%s'", user))
	return nil
}

// RotatePasswords sets every account's password. The first request uses the
// bootstrap password; once the first account has its new password, every
// later request authenticates with that instead.
func (c *Client) RotatePasswords(ctx context.Context, bootstrap string, accounts []Account) error {
	acting := bootstrap
	for i, a := range accounts {
		if err := c.SetPassword(ctx, acting, a.User, a.Password); err != nil {
			return err
		}
		if i == 0 {
			acting = a.Password
		}
	}
	return nil
}
