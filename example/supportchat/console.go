package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/actionblock/agent"
	"github.com/tbxark/actionblock/classify"
	"github.com/tbxark/actionblock/registry"
	"github.com/tbxark/actionblock/types"
)

const help = `Commands:
  /act N ACTION [name=value ...]   act on open block N
  /agent TEXT                      post as the human agent (live chat)
  /flows                           list authorable flow steps
  /quit                            leave`

type console struct {
	flow   *agent.Flow
	reg    *registry.Registry
	runner *adk.Runner
	open   []types.InstanceKey
}

func newConsole(flow *agent.Flow, reg *registry.Registry) *console {
	return &console{flow: flow, reg: reg}
}

func (c *console) run(ctx context.Context) error {
	if c.flow.Surface() == agent.SurfaceAIChat {
		supportAgent, err := agent.NewAgent(
			"SupportChat",
			"An assistant that books car services through interactive blocks",
			c.flow,
		)
		if err != nil {
			return err
		}
		c.runner = adk.NewRunner(ctx, adk.RunnerConfig{Agent: supportAgent})
	}
	fmt.Println("Welcome to support chat. Type a message, or /help.")
	if err := c.show(ctx); err != nil {
		return err
	}
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("you: ")
		input, rErr := reader.ReadString('\n')
		if rErr != nil {
			fmt.Println("Input closed. Bye.")
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		quit, err := c.handle(ctx, input)
		if err != nil {
			fmt.Printf("! %s\n", types.UserMessageOf(err))
		}
		if quit {
			return nil
		}
		if err := c.show(ctx); err != nil {
			return err
		}
	}
}

func (c *console) handle(ctx context.Context, input string) (bool, error) {
	cmd, rest, _ := strings.Cut(input, " ")
	switch cmd {
	case "/quit":
		return true, nil
	case "/help":
		fmt.Println(help)
		return false, nil
	case "/flows":
		for _, p := range classify.Previews(c.reg) {
			fmt.Printf("  %-16s %-22s %s\n", p.Tag, p.BlockType, p.Description)
		}
		return false, nil
	case "/agent":
		_, err := c.flow.ReceiveAgent(ctx, rest)
		return false, err
	case "/act":
		return false, c.act(ctx, rest)
	}
	if c.runner == nil {
		_, err := c.flow.SendCustomer(ctx, input)
		return false, err
	}
	iter := c.runner.Run(ctx, []adk.Message{schema.UserMessage(input)})
	for {
		event, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if event.Err != nil {
			return false, event.Err
		}
	}
}

func (c *console) act(ctx context.Context, args string) error {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return errors.New("usage: /act N ACTION [name=value ...]")
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 || n > len(c.open) {
		return fmt.Errorf("no open block %q", fields[0])
	}
	act := types.Action{Name: fields[1], Values: map[string]string{}}
	for _, kv := range fields[2:] {
		name, value, _ := strings.Cut(kv, "=")
		act.Values[name] = strings.ReplaceAll(value, "_", " ")
	}
	_, err = c.flow.Act(ctx, c.open[n-1], act)
	return err
}

// show prints the latest assistant message and every open block.
func (c *console) show(ctx context.Context) error {
	rendered, err := c.flow.Render(ctx)
	if err != nil {
		return err
	}
	c.open = c.open[:0]
	for i, rm := range rendered {
		latest := i == len(rendered)-1
		for _, rb := range rm.Blocks {
			if rb.View == nil {
				if latest && rm.Message.Role == schema.Assistant {
					fmt.Printf("\nassistant: %s\n", rb.Block.Content)
				}
				continue
			}
			if rb.Used && !latest {
				continue
			}
			c.printView(rb)
		}
	}
	return nil
}

func (c *console) printView(rb agent.RenderedBlock) {
	v := rb.View
	if rb.Used {
		fmt.Printf("  [done] %s\n", v.Title)
		return
	}
	c.open = append(c.open, rb.Key)
	fmt.Printf("  [%d] %s\n", len(c.open), v.Title)
	if v.Body != "" {
		fmt.Println(indent(v.Body))
	}
	for _, ctl := range v.Controls {
		line := fmt.Sprintf("      %s -> /act %d %s", ctl.Label, len(c.open), ctl.Action)
		if ctl.Kind != types.ControlButton {
			line += " " + ctl.Name + "=..."
		}
		for _, o := range ctl.Options {
			line += fmt.Sprintf("\n        %s=%s  (%s)", ctl.Name, o.Value, o.Label)
		}
		if ctl.Disabled {
			line += "  (waiting)"
		}
		fmt.Println(line)
	}
	if v.Error != "" {
		fmt.Printf("      ! %s\n", v.Error)
	}
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "      " + l
	}
	return strings.Join(lines, "\n")
}
