package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/tracker"
	"github.com/tasklog/tasklog/internal/types"
)

var commentCmd = &cobra.Command{
	Use:     "comment",
	GroupID: GroupTasks,
	Short:   "Add, edit or delete task comments",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <id> [text]",
	Short: "Add a comment to a task",
	Long: `Add a comment to a task. Without a text argument the comment is read
from piped input, or from the editor on a terminal.`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runCommentAdd,
}

var commentEditCmd = &cobra.Command{
	Use:   "edit <id> <comment_id>",
	Short: "Edit a task comment in the editor",
	Args:  cobra.ExactArgs(2),
	Run:   runCommentEdit,
}

var commentDeleteCmd = &cobra.Command{
	Use:   "delete <id> <comment_id>",
	Short: "Delete a task comment",
	Args:  cobra.ExactArgs(2),
	Run:   runCommentDelete,
}

func init() {
	commentAddCmd.Flags().Bool("push", false, "push the comment to the remote tracker")
	commentEditCmd.Flags().Bool("push", false, "update the linked remote comment")
	commentDeleteCmd.Flags().Bool("push", false, "delete the linked remote comment")
	commentCmd.AddCommand(commentAddCmd, commentEditCmd, commentDeleteCmd)
	rootCmd.AddCommand(commentCmd)
}

func runCommentAdd(cmd *cobra.Command, args []string) {
	push, _ := cmd.Flags().GetBool("push")

	id, err := strconv.Atoi(args[0])
	if err != nil {
		FatalError("invalid task ID %q", args[0])
	}

	var text string
	if len(args) == 2 {
		text = args[1]
	} else if piped, ok := readPipe(); ok {
		text = strings.TrimRight(piped, "\n")
	} else {
		text, err = editText(rootCtx, "")
		if err != nil {
			FatalError("Editing failed: %v", err)
		}
	}
	if strings.TrimSpace(text) == "" {
		FatalError("No text specified")
	}

	mut := &storage.AddComment{
		TaskID: id,
		Author: repo.AuthorName(rootCtx),
		At:     time.Now(),
		Text:   text,
	}
	if err := store.Apply(rootCtx, mut); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			FatalError("Task ID %d not found", id)
		}
		FatalError("%v", err)
	}
	fmt.Printf("Task ID %d updated\n", id)

	if push {
		pushTasks(rootCtx, []int{id}, true, false)
	}
}

func runCommentEdit(cmd *cobra.Command, args []string) {
	push, _ := cmd.Flags().GetBool("push")

	id, cid := parseCommentArgs(args)
	task := mustTask(rootCtx, id)
	if len(task.Comments) == 0 {
		FatalError("Task has no comments")
	}
	c := task.FindComment(cid)
	if c == nil {
		FatalError("Comment not found")
	}

	text, err := editText(rootCtx, c.Text)
	if err != nil {
		FatalError("Editing failed: %v", err)
	}
	if strings.TrimSpace(text) == "" {
		FatalError("No text specified")
	}

	if err := store.Apply(rootCtx, &storage.UpdateComment{TaskID: id, CommentID: cid, Text: text}); err != nil {
		FatalError("%v", err)
	}
	fmt.Printf("Task ID %d updated\n", id)

	if push {
		pushCommentEdit(task, c, text)
	}
}

func runCommentDelete(cmd *cobra.Command, args []string) {
	push, _ := cmd.Flags().GetBool("push")

	id, cid := parseCommentArgs(args)
	task := mustTask(rootCtx, id)
	c := task.FindComment(cid)
	if c == nil {
		FatalError("Comment not found")
	}

	if err := store.Apply(rootCtx, &storage.DeleteComment{TaskID: id, CommentID: cid}); err != nil {
		FatalError("%v", err)
	}
	fmt.Printf("Task ID %d updated\n", id)

	if push {
		pushCommentDelete(task, c)
	}
}

func parseCommentArgs(args []string) (id, cid int) {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		FatalError("invalid task ID %q", args[0])
	}
	cid, err = strconv.Atoi(args[1])
	if err != nil {
		FatalError("invalid comment ID %q", args[1])
	}
	return id, cid
}

// remoteCommentLink resolves the remote identity of a task comment for
// the matched tracker. Unlinked records produce a warning and no-op.
func remoteCommentLink(task *types.Task, c *types.Comment) (tracker.Tracker, types.Link, types.Link, bool) {
	tr := matchTracker(rootCtx)
	kind := tr.Kind()
	issueLink, ok := task.LinkFor(kind)
	if !ok {
		WarnError("task %d is not linked to %s", task.ID, tr.DisplayName())
		return nil, types.Link{}, types.Link{}, false
	}
	commentLink, ok := c.LinkFor(kind)
	if !ok {
		WarnError("comment %d is not linked to %s", c.ID, tr.DisplayName())
		return nil, types.Link{}, types.Link{}, false
	}
	return tr, issueLink, commentLink, true
}

func pushCommentEdit(task *types.Task, c *types.Comment, text string) {
	tr, issueLink, commentLink, ok := remoteCommentLink(task, c)
	if !ok {
		return
	}
	if err := tr.UpdateComment(rootCtx, issueLink.ID, commentLink.ID, text); err != nil {
		if errors.Is(err, tracker.ErrUnsupported) {
			WarnError("%s does not support editing comments", tr.DisplayName())
			return
		}
		FatalError("%v", err)
	}
	fmt.Printf("Sync: REMOTE comment ID %s has been updated\n", commentLink.ID)
}

func pushCommentDelete(task *types.Task, c *types.Comment) {
	tr, issueLink, commentLink, ok := remoteCommentLink(task, c)
	if !ok {
		return
	}
	if err := tr.DeleteComment(rootCtx, issueLink.ID, commentLink.ID); err != nil {
		if errors.Is(err, tracker.ErrUnsupported) {
			WarnError("%s does not support deleting comments", tr.DisplayName())
			return
		}
		FatalError("%v", err)
	}
	fmt.Printf("Sync: REMOTE comment ID %s has been deleted\n", commentLink.ID)
}
