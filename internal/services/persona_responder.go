package services

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/ahmetk3436/persona-trainer/internal/models"
)

// ErrMissingContext is returned when a reply is requested without a persona or scenario.
var ErrMissingContext = errors.New("persona or scenario missing")

// GentleThreshold is the agreeableness score above which a persona answers gently.
const GentleThreshold = 70

// Topic is the closed set of scenario domains the responder knows about.
type Topic int

const (
	TopicGaming Topic = iota
	TopicTax
)

func (t Topic) String() string {
	if t == TopicTax {
		return "tax"
	}
	return "gaming"
}

// ClassifyTopic maps a scenario subject onto a Topic. Anything that does not
// mention tax is handled as gaming/technical support.
func ClassifyTopic(subject string) Topic {
	if strings.Contains(strings.ToLower(subject), "tax") {
		return TopicTax
	}
	return TopicGaming
}

var hintsByTopic = map[Topic][]string{
	TopicTax: {
		"Hint: Confirm whether the client is already VAT registered before quoting any rates.",
		"Hint: Remind the client that filing deadlines are fixed and late returns carry penalties.",
		"Hint: Ask for invoice dates so you can place each transaction in the right tax period.",
		"Hint: Do not give binding legal advice; refer complex cases to a certified tax advisor.",
	},
	TopicGaming: {
		"Hint: Ask which platform and game version the player is running.",
		"Hint: Suggest verifying the game files before a full reinstall.",
		"Hint: Check whether the graphics drivers are up to date.",
		"Hint: Collect the crash log or error code before escalating the ticket.",
	},
}

// Hints returns a copy of the fixed hint list for a topic.
func Hints(topic Topic) []string {
	return append([]string(nil), hintsByTopic[topic]...)
}

// bodies[topic][0] is brusque, bodies[topic][1] is gentle. The user's text is
// interpolated verbatim.
var bodies = map[Topic][2]string{
	TopicTax: {
		`You asked about "%s". The VAT rules are written down, read them before you ask me.`,
		`VAT can be confusing, so let's go through "%s" together step by step.`,
	},
	TopicGaming: {
		`You said "%s". Have you even tried restarting the game?`,
		`Crashes are frustrating, so let's sort out "%s" together.`,
	},
}

const (
	gentleOpener  = "[AI %s] I'm really sorry you're dealing with this, I completely understand. "
	brusqueOpener = "[AI %s] Look, I don't have all day. "
)

// RandSource picks an index in [0,n).
type RandSource interface {
	IntN(n int) int
}

type defaultRand struct{}

func (defaultRand) IntN(n int) int { return rand.IntN(n) }

// PersonaReply is the output of one generation: the hint is stored before the reply.
type PersonaReply struct {
	Topic Topic
	Hint  string
	Reply string
}

// PersonaResponder builds scripted persona replies. It holds no mutable state and is
// safe for concurrent use as long as its RandSource is.
type PersonaResponder struct {
	rnd RandSource
}

// NewPersonaResponder returns a responder; a nil source uses math/rand/v2.
func NewPersonaResponder(rnd RandSource) *PersonaResponder {
	if rnd == nil {
		rnd = defaultRand{}
	}
	return &PersonaResponder{rnd: rnd}
}

// Generate builds the hint and persona reply for one user message.
func (r *PersonaResponder) Generate(input string, persona *models.Persona, scenario *models.Scenario) (*PersonaReply, error) {
	if persona == nil || scenario == nil {
		return nil, ErrMissingContext
	}

	topic := ClassifyTopic(scenario.Subject)
	hints := hintsByTopic[topic]
	hint := hints[r.pick(len(hints))]

	gentle := models.TraitScore(persona.AScore) > GentleThreshold

	opener := brusqueOpener
	body := bodies[topic][0]
	if gentle {
		opener = gentleOpener
		body = bodies[topic][1]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(opener, persona.Role))
	sb.WriteString(fmt.Sprintf(body, input))
	sb.WriteString(" I recommend a ")
	sb.WriteString(persona.Tone)
	sb.WriteString(" approach.")

	return &PersonaReply{Topic: topic, Hint: hint, Reply: sb.String()}, nil
}

func (r *PersonaResponder) pick(n int) int {
	i := r.rnd.IntN(n)
	if i < 0 || i >= n {
		return 0
	}
	return i
}
