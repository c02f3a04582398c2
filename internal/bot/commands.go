package bot

import (
	"errors"
	"fmt"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"strconv"
	"strings"
)

func (b *Bot) listSessions(_ ...string) (Attachment, error) {
	sessions := b.controller.Sessions()
	if len(sessions) == 0 {
		return Attachment{}, errors.New("no domains configured")
	}
	body := make([]string, 0, len(sessions)+1)
	for _, session := range sessions {
		body = append(body, "*"+session.Domain+"*: "+sessionState(session))
	}
	body = append(body, "automation: "+onOff(b.controller.AutoMode()))
	return Attachment{Color: "good", Header: "Sessions:", Body: body}, nil
}

func sessionState(session automation.Session) string {
	if session.Status != automation.Running {
		return "idle"
	}
	state := "running " + session.ActiveRuleID
	if session.Cycling && session.CyclePhase == automation.Pause {
		state += ", paused"
	}
	return fmt.Sprintf("%s (%s left)", state, session.Timer)
}

func (b *Bot) listRules(args ...string) (Attachment, error) {
	domain, err := b.domain(args...)
	if err != nil {
		return Attachment{}, err
	}
	store, err := b.controller.Rules(domain)
	if err != nil {
		return Attachment{}, err
	}
	snapshot := store.Snapshot()
	if snapshot.Len() == 0 {
		return Attachment{Color: "good", Header: "Rules for " + domain + ":", Body: []string{"no rules have been configured"}}, nil
	}
	body := make([]string, 0, snapshot.Len())
	for i, rule := range snapshot.Rules() {
		line := fmt.Sprintf("%d. *%s* (%s): %s", i+1, rule.Name, rule.ID, rule.String())
		switch {
		case !snapshot.Valid(rule.ID):
			line += " _(malformed)_"
		case !rule.Active:
			line += " _(inactive)_"
		}
		body = append(body, line)
	}
	return Attachment{Color: "good", Header: "Rules for " + domain + ":", Body: body}, nil
}

// domain returns the domain named in the command. If only one domain is configured, the name can be omitted.
func (b *Bot) domain(args ...string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	domains := b.controller.Domains()
	if len(domains) != 1 {
		return "", fmt.Errorf("missing domain\nUsage: /rules <%s>", strings.Join(domains, "|"))
	}
	return domains[0], nil
}

func (b *Bot) autoMode(args ...string) (Attachment, error) {
	if len(args) == 0 {
		return Attachment{Color: "good", Header: "Automation:", Body: []string{onOff(b.controller.AutoMode())}}, nil
	}
	enabled, err := parseOnOff(args[0])
	if err != nil {
		return Attachment{}, fmt.Errorf("%w\nUsage: /automode [on|off]", err)
	}
	b.controller.SetAutoMode(enabled)
	return Attachment{Color: "good", Header: "Automation:", Body: []string{"switched " + onOff(enabled)}}, nil
}

func (b *Bot) setRule(args ...string) (Attachment, error) {
	const usage = "Usage: /rule <domain> <rule> [on|off|<position>]"
	if len(args) != 3 {
		return Attachment{}, errors.New("missing parameters\n" + usage)
	}
	store, err := b.controller.Rules(args[0])
	if err != nil {
		return Attachment{}, err
	}
	domain, id := args[0], args[1]

	if position, err := strconv.Atoi(args[2]); err == nil {
		if err = store.Move(id, position-1); err != nil {
			return Attachment{}, err
		}
		return Attachment{Color: "good", Header: "Rules for " + domain + ":", Body: []string{fmt.Sprintf("moved %s to position %d", id, position)}}, nil
	}

	active, err := parseOnOff(args[2])
	if err != nil {
		return Attachment{}, fmt.Errorf("%w\n%s", err, usage)
	}
	if err = store.SetActive(id, active); err != nil {
		return Attachment{}, err
	}
	return Attachment{Color: "good", Header: "Rules for " + domain + ":", Body: []string{"switched " + id + " " + onOff(active)}}, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid argument: %q", s)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
