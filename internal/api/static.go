package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"status-agent/internal/agent"
)

const stoppedPage = "<h1>Service stopped</h1><p>The agent is shutting down.</p>"

// NewWebRouter serves the dashboard files under root. Unknown paths fall
// back to index.html so client side routes resolve.
func NewWebRouter(root string, state *agent.State, logOut io.Writer) (*gin.Engine, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create web root: %w", err)
	}

	r := gin.New()
	r.Use(Recovery())
	if logOut != nil {
		r.Use(RequestLogger(logOut))
	}
	r.NoRoute(staticHandler(root, state))
	return r, nil
}

func staticHandler(root string, state *agent.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		if state.Stopping() {
			c.Data(http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(stoppedPage))
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusMethodNotAllowed)
			return
		}

		clean := path.Clean("/" + c.Request.URL.Path)
		if clean != "/" {
			file := filepath.Join(root, filepath.FromSlash(clean))
			if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() {
				c.File(file)
				return
			}
		}

		index := filepath.Join(root, "index.html")
		if info, err := os.Stat(index); err == nil && info.Mode().IsRegular() {
			c.File(index)
			return
		}
		c.Status(http.StatusNotFound)
	}
}
