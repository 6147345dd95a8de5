package notify

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Composer renders message templates against a recipient. Supported
// placeholders: {first_name}, {username}, {queue}, {time}, {date}.
type Composer struct {
	loc    *time.Location
	logger *zap.Logger
}

func NewComposer(loc *time.Location, logger *zap.Logger) *Composer {
	if loc == nil {
		loc = time.Local
	}
	return &Composer{loc: loc, logger: logger}
}

// Render substitutes every placeholder the template names. A template
// referring to a placeholder we cannot resolve comes back verbatim:
// delivery is never blocked by a formatting defect, the event is only
// logged.
func (c *Composer) Render(template string, user *domain.User) string {
	values := c.placeholderValues(user)

	for _, match := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if _, ok := values[match[1]]; !ok {
			c.logger.Warn("unknown placeholder in template, sending raw template",
				zap.String("placeholder", match[1]),
			)
			return template
		}
	}

	rendered := template
	for name, value := range values {
		rendered = strings.ReplaceAll(rendered, "{"+name+"}", value)
	}
	return rendered
}

func (c *Composer) placeholderValues(user *domain.User) map[string]string {
	now := time.Now().In(c.loc)

	firstName := "Користувач"
	username := ""
	queue := "невідомо"
	if user != nil {
		if user.FirstName != nil && *user.FirstName != "" {
			firstName = *user.FirstName
		}
		if user.Username != nil {
			username = *user.Username
		}
		if user.PrimaryQueueID != nil {
			queue = fmt.Sprintf("%d", *user.PrimaryQueueID)
		}
	}

	return map[string]string{
		"first_name": firstName,
		"username":   username,
		"queue":      queue,
		"time":       now.Format("15:04"),
		"date":       now.Format("02.01.2006"),
	}
}
