package blocks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tbxark/actionblock/action"
	"github.com/tbxark/actionblock/registry"
	"github.com/tbxark/actionblock/types"
)

const (
	TypeActionMenu     types.BlockType = "action_menu"
	TypeRating         types.BlockType = "rating"
	TypeLanguageSelect types.BlockType = "language_select"
)

type ActionMenu struct {
	Options []string `json:"options"`
}

func (ActionMenu) BlockType() types.BlockType { return TypeActionMenu }

type MenuResult struct {
	Option string `json:"option"`
}

func parseMenu(inner string) types.Payload {
	var opts []string
	seen := map[string]bool{}
	for _, line := range strings.Split(inner, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimLeft(line, "-*•"))
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		opts = append(opts, line)
	}
	return ActionMenu{Options: opts}
}

func actionMenuDefinition() registry.Definition {
	return registry.Definition{
		Type:     TypeActionMenu,
		Open:     "[ACTION_MENU]",
		Close:    "[/ACTION_MENU]",
		Layout:   registry.LayoutLines,
		Parse:    parseMenu,
		Renderer: menuRenderer{},
		Meta: registry.Meta{
			Label:       "Menu",
			Icon:        "list",
			Description: "Offer quick replies, one option per line.",
			Preview:     "One button per option",
			FlowTags:    []string{"quick_reply"},
			Keywords:    []string{"menu", "options", "choose", "choice"},
		},
		Example: "[ACTION_MENU]\nBook a service\nChange my booking\n[/ACTION_MENU]",
	}
}

type menuRenderer struct{}

func (menuRenderer) Render(req *registry.RenderRequest) *types.View {
	if res, ok := decodeRecord[MenuResult](req.Record); ok {
		return answeredView(req, TypeActionMenu, "Your choice", types.Field{Label: "Chosen", Value: res.Option})
	}
	p, _ := req.Payload.(ActionMenu)
	v := openView(req, TypeActionMenu, "Choose an option")
	for _, opt := range p.Options {
		c := button("choose", opt)
		c.Name = "option"
		c.Value = opt
		v.Controls = append(v.Controls, c)
	}
	return v
}

func (menuRenderer) Submit(_ context.Context, _ *registry.Env, req *registry.RenderRequest, act types.Action) (*registry.Outcome, error) {
	if act.Name != "choose" {
		return nil, unknownAction(TypeActionMenu, act)
	}
	p, _ := req.Payload.(ActionMenu)
	choice := act.Value("option")
	for _, opt := range p.Options {
		if opt == choice {
			return &registry.Outcome{Result: MenuResult{Option: opt}, Summary: opt}, nil
		}
	}
	return nil, types.Validation("Choose one of the options.")
}

type Rating struct{}

func (Rating) BlockType() types.BlockType { return TypeRating }

type RatingResult struct {
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

func ratingDefinition() registry.Definition {
	return registry.Definition{
		Type:     TypeRating,
		Open:     "[RATING]",
		Parse:    func(string) types.Payload { return Rating{} },
		Renderer: ratingRenderer{},
		Meta: registry.Meta{
			Label:       "Rating",
			Icon:        "star",
			Description: "Ask the customer to rate the conversation from 1 to 5 stars.",
			Preview:     "Five stars and an optional comment",
			FlowTags:    []string{"feedback"},
			Keywords:    []string{"rating", "rate", "feedback", "stars", "review"},
		},
		Example: "[RATING]",
	}
}

type ratingRenderer struct{}

func (ratingRenderer) Render(req *registry.RenderRequest) *types.View {
	if res, ok := decodeRecord[RatingResult](req.Record); ok {
		return answeredView(req, TypeRating, "Thanks for your feedback",
			types.Field{Label: "Score", Value: strings.Repeat("★", res.Score)},
			types.Field{Label: "Comment", Value: res.Comment})
	}
	v := openView(req, TypeRating, "How did we do?")
	v.Controls = []types.Control{
		{Name: "score", Kind: types.ControlRating, Label: "Score", Action: "rate", Length: 5},
		input("comment", "Comment (optional)", "rate", ""),
		button("rate", "Send"),
	}
	return v
}

func (ratingRenderer) Submit(_ context.Context, _ *registry.Env, _ *registry.RenderRequest, act types.Action) (*registry.Outcome, error) {
	if act.Name != "rate" {
		return nil, unknownAction(TypeRating, act)
	}
	score, err := strconv.Atoi(act.Value("score"))
	if err != nil || score < 1 || score > 5 {
		return nil, types.Validation("Pick a score from 1 to 5.")
	}
	res := RatingResult{Score: score, Comment: act.Value("comment")}
	summary := fmt.Sprintf("I rate this %d out of 5.", score)
	if res.Comment != "" {
		summary += " " + res.Comment
	}
	return &registry.Outcome{Result: res, Summary: summary}, nil
}

// Languages the assistant can answer in.
var Languages = []types.Option{
	{Value: "en", Label: "English"},
	{Value: "nl", Label: "Nederlands"},
	{Value: "de", Label: "Deutsch"},
	{Value: "fr", Label: "Français"},
}

type LanguageSelect struct {
	Languages []types.Option `json:"languages"`
}

func (LanguageSelect) BlockType() types.BlockType { return TypeLanguageSelect }

type LanguageResult struct {
	Language string `json:"language"`
}

func languageSelectDefinition() registry.Definition {
	return registry.Definition{
		Type:     TypeLanguageSelect,
		Open:     "[LANGUAGE_SELECT]",
		Parse:    func(string) types.Payload { return LanguageSelect{Languages: Languages} },
		Renderer: languageRenderer{},
		Meta: registry.Meta{
			Label:       "Language",
			Icon:        "globe",
			Description: "Let the customer choose the conversation language.",
			Preview:     "Language picker",
			FlowTags:    []string{"choose_language"},
			Keywords:    []string{"language", "taal", "sprache", "langue"},
		},
		Example: "[LANGUAGE_SELECT]",
	}
}

type languageRenderer struct{}

func languageLabel(code string) string {
	for _, l := range Languages {
		if l.Value == code {
			return l.Label
		}
	}
	return code
}

func (languageRenderer) Render(req *registry.RenderRequest) *types.View {
	if res, ok := decodeRecord[LanguageResult](req.Record); ok {
		return answeredView(req, TypeLanguageSelect, "Language", types.Field{Label: "Language", Value: languageLabel(res.Language)})
	}
	p, _ := req.Payload.(LanguageSelect)
	v := openView(req, TypeLanguageSelect, "Choose your language")
	v.Controls = []types.Control{
		{
			Name:    "language",
			Kind:    types.ControlSelect,
			Label:   "Language",
			Action:  "choose",
			Value:   req.Prefs[action.PrefPreferredLanguage],
			Options: p.Languages,
		},
		button("choose", "Continue"),
	}
	return v
}

func (languageRenderer) Submit(_ context.Context, _ *registry.Env, req *registry.RenderRequest, act types.Action) (*registry.Outcome, error) {
	if act.Name != "choose" {
		return nil, unknownAction(TypeLanguageSelect, act)
	}
	code := strings.ToLower(act.Value("language"))
	p, _ := req.Payload.(LanguageSelect)
	for _, l := range p.Languages {
		if l.Value == code {
			return &registry.Outcome{
				Result:  LanguageResult{Language: code},
				Summary: "I'd like to continue in " + l.Label + ".",
				Prefs:   map[string]string{action.PrefPreferredLanguage: code},
			}, nil
		}
	}
	return nil, types.Validation("Choose one of the listed languages.")
}
