package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/ui"
)

var createCmd = &cobra.Command{
	Use:     "create [name]",
	GroupID: GroupTasks,
	Short:   "Create a new task",
	Long: `Create a new task with the starting status.

Without a name argument, piped input supplies it (first line becomes the
name, the rest the description); on a terminal an interactive form opens
instead. The description comes from --description, or the editor unless
--no-desc is given.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runCreate,
}

func init() {
	f := createCmd.Flags()
	f.StringP("description", "d", "", "task description")
	f.Bool("no-desc", false, "create the task without a description")
	f.BoolP("interactive", "i", false, "open the create form")
	f.Bool("push", false, "push the new task to the remote tracker")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) {
	flags := cmd.Flags()
	description, _ := flags.GetString("description")
	noDesc, _ := flags.GetBool("no-desc")
	interactive, _ := flags.GetBool("interactive")
	push, _ := flags.GetBool("push")

	var name string
	if len(args) == 1 {
		name = args[0]
	}

	if interactive {
		var ok bool
		name, description, ok = createForm(name, description)
		if !ok {
			fmt.Fprintln(os.Stderr, "cancelled")
			return
		}
	} else if name == "" {
		if piped, ok := readPipe(); ok {
			name, description = splitPiped(piped)
			if name == "" {
				FatalError("no task name in input")
			}
		} else {
			var ok bool
			name, description, ok = createForm("", "")
			if !ok {
				fmt.Fprintln(os.Stderr, "cancelled")
				return
			}
		}
	} else if description == "" && !noDesc {
		text, err := editText(rootCtx, "")
		if err != nil {
			WarnError("%v", err)
		}
		description = text
	}

	mut := &storage.CreateTask{
		Name:        name,
		Description: description,
		Status:      cfg.Statuses(rootCtx).Starting().Name,
		Author:      repo.AuthorName(rootCtx),
		CreatedAt:   time.Now(),
	}
	if err := store.Apply(rootCtx, mut); err != nil {
		FatalError("%v", err)
	}
	fmt.Printf("Task ID %d created\n", mut.ID)

	if push {
		pushTasks(rootCtx, []int{mut.ID}, false, false)
	}
}

// splitPiped maps piped text onto a task: first line name, remainder
// description.
func splitPiped(text string) (name, description string) {
	name, description, _ = strings.Cut(strings.TrimLeft(text, "\n"), "\n")
	return strings.TrimSpace(name), strings.TrimSpace(description)
}

func createForm(name, description string) (string, string, bool) {
	if !ui.StdinIsTerminal() {
		return "", "", false
	}
	confirmed := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("One-line task summary").
				Placeholder("Fix the thing").
				Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("name cannot be empty")
					}
					return nil
				}),
			huh.NewText().
				Title("Description").
				Description("Optional details, markdown welcome").
				CharLimit(5000).
				Value(&description),
			huh.NewConfirm().
				Title("Create this task?").
				Affirmative("Create").
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", "", false
		}
		FatalError("%v", err)
	}
	if !confirmed {
		return "", "", false
	}
	return strings.TrimSpace(name), description, true
}
