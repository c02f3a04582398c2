package bot

import "github.com/slack-go/slack"

// Attachment is the response to a slash command.
type Attachment struct {
	Color  string
	Header string
	Body   []string
}

func (a Attachment) Format() slack.MsgOption {
	return slack.MsgOptionAttachments(a.build())
}

func (a Attachment) build() slack.Attachment {
	lines := make([]*slack.TextBlockObject, len(a.Body))
	for i, line := range a.Body {
		lines[i] = slack.NewTextBlockObject(slack.MarkdownType, line, false, false)
	}
	return slack.Attachment{
		Color: a.Color,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "*"+a.Header+"*", false, false), lines, nil),
		}},
	}
}
