package remote

import (
	"testing"

	"github.com/kjk/insertrow/config"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	assert.Error(t, Validate(nil))
	c := &config.Remote{}
	assert.Error(t, Validate(c))
	c.User = "root"
	c.Host = "example.com"
	assert.Error(t, Validate(c))
	c.KeyPath = "~/.ssh/id_ed25519"
	assert.Error(t, Validate(c))
	c.Path = "/var/db/guestbook.txt"
	assert.NoError(t, Validate(c))
}

func TestPullInvalid(t *testing.T) {
	_, err := Pull(&config.Remote{User: "root"}, t.TempDir()+"/db.txt")
	assert.Error(t, err)
}
