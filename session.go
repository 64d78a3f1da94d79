package main

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"

	"github.com/doubletabai/askdb/pkg/console"
	"github.com/doubletabai/askdb/pkg/errs"
	"github.com/doubletabai/askdb/pkg/executor"
	"github.com/doubletabai/askdb/pkg/pipeline"
	"github.com/doubletabai/askdb/pkg/training"
)

const helpText = `Anything not starting with "/" is asked as a question.

  /schema <DDL>             train a schema definition
  /pair <question> => <SQL> train an example question and its SQL
  /list                     list training items
  /show <id>                show one training item
  /remove <id>              remove a training item
  /reset                    remove every training item
  /sql <statement>          run SQL directly
  /tables                   list tables of the target database
  /health                   check the target database and corpus
  /exit                     quit`

const pairSeparator = "=>"

var errQuit = errors.New("quit")

type service interface {
	Ask(ctx context.Context, question string) (pipeline.Answer, error)
	Train(ctx context.Context, kind training.Kind, p pipeline.Payload) (int64, error)
	ListTraining(ctx context.Context) ([]training.View, error)
	GetTraining(ctx context.Context, id int64) (training.View, error)
	RemoveTraining(ctx context.Context, id int64) error
	ResetTraining(ctx context.Context) error
	ExecuteRaw(ctx context.Context, sql string) (executor.Result, error)
	Tables(ctx context.Context) ([]string, error)
	Health(ctx context.Context) (pipeline.Health, error)
}

type session struct {
	svc service
}

func newSession(svc service) *session {
	return &session{svc: svc}
}

func (s *session) run(ctx context.Context, onInterrupt func()) {
	for {
		if ctx.Err() != nil {
			return
		}
		line, err := pterm.DefaultInteractiveTextInput.
			WithDefaultText(">").
			WithDelimiter(" ").
			WithOnInterruptFunc(onInterrupt).
			Show()
		if err != nil {
			log.Error().Err(err).Msg("Failed to get user input")
			return
		}
		if err := s.handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			console.RenderError(err)
		}
	}
}

// parseCommand splits "/name argument" input. Plain questions have an empty name.
func parseCommand(line string) (name, arg string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", line
	}
	name, arg, _ = strings.Cut(line[1:], " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func parsePair(arg string) (pipeline.Payload, error) {
	question, sql, ok := strings.Cut(arg, pairSeparator)
	if !ok {
		return pipeline.Payload{}, errs.New(errs.Validation, "session", "usage: /pair <question> => <SQL>")
	}
	return pipeline.Payload{Question: strings.TrimSpace(question), SQL: strings.TrimSpace(sql)}, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return 0, errs.New(errs.Validation, "session", "expected a numeric training item id")
	}
	return id, nil
}

func (s *session) handle(ctx context.Context, line string) error {
	name, arg := parseCommand(line)
	switch name {
	case "":
		if arg == "" {
			return nil
		}
		return s.ask(ctx, arg)
	case "help":
		pterm.DefaultBasicText.Println(helpText)
	case "exit", "quit":
		return errQuit
	case "schema":
		return s.train(ctx, training.Schema, pipeline.Payload{Content: arg})
	case "pair":
		p, err := parsePair(arg)
		if err != nil {
			return err
		}
		return s.train(ctx, training.QuestionSQLPair, p)
	case "list":
		views, err := s.svc.ListTraining(ctx)
		if err != nil {
			return err
		}
		return console.RenderTraining(views)
	case "show":
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		v, err := s.svc.GetTraining(ctx, id)
		if err != nil {
			return err
		}
		return console.RenderTraining([]training.View{v})
	case "remove":
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		if err := s.svc.RemoveTraining(ctx, id); err != nil {
			return err
		}
		pterm.Success.Printfln("Removed training item %d", id)
	case "reset":
		if err := s.svc.ResetTraining(ctx); err != nil {
			return err
		}
		pterm.Success.Println("Training corpus cleared")
	case "sql":
		res, err := s.svc.ExecuteRaw(ctx, arg)
		if err != nil {
			return err
		}
		return console.RenderResult(res)
	case "tables":
		tables, err := s.svc.Tables(ctx)
		if err != nil {
			return err
		}
		pterm.DefaultBasicText.Println(strings.Join(tables, ", "))
	case "health":
		h, err := s.svc.Health(ctx)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("Target database reachable, %d training item(s)", h.TrainingItems)
	default:
		return errs.New(errs.Validation, "session", "unknown command /"+name+", type /help")
	}
	return nil
}

func (s *session) train(ctx context.Context, kind training.Kind, p pipeline.Payload) error {
	spinner := console.NewSpinner("Training...")
	id, err := s.svc.Train(ctx, kind, p)
	if err != nil {
		spinner.Fail("Training failed")
		return err
	}
	spinner.Success("Stored " + kind.String() + " item " + strconv.FormatInt(id, 10))
	return nil
}

func (s *session) ask(ctx context.Context, question string) error {
	spinner := console.NewSpinner("Thinking...")
	ans, err := s.svc.Ask(ctx, question)
	if err != nil {
		// Execution errors carry the generated SQL; RenderError prints it.
		spinner.Fail("Failed at " + ans.Stage.String())
		return err
	}
	spinner.Success()
	console.RenderSQL(ans.SQL)
	return console.RenderResult(ans.Result)
}
