package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/spf13/cobra"

	"github.com/Laisky/sparkboard/internal/board"
	"github.com/Laisky/sparkboard/internal/web"
)

var postCMD = &cobra.Command{
	Use:     "post",
	Short:   "publish a post",
	Long:    `run one submission through validation, rate limit and moderation`,
	Args:    gcmd.NoExtraArgs,
	PreRunE: preRunInitialize,
	RunE: func(cmd *cobra.Command, args []string) error {
		nickname, _ := cmd.Flags().GetString("nickname")
		content, _ := cmd.Flags().GetString("content")
		imagePath, _ := cmd.Flags().GetString("image")

		app, err := newBoardApp(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "new board")
		}
		defer app.Close()

		req := board.SubmitRequest{Nickname: nickname, Content: content}
		if imagePath != "" {
			if req.Image, err = board.OpenImageFile(imagePath); err != nil {
				return errors.Wrapf(err, "open image %s", imagePath)
			}
		}

		post, err := app.pipeline.Submit(cmd.Context(), req)
		if err != nil {
			return describeSubmissionError(err)
		}

		return writePosts(cmd.OutOrStdout(), []board.Post{*post}, jsonOutput(cmd))
	},
}

var listCMD = &cobra.Command{
	Use:     "list",
	Short:   "list posts, newest first",
	Args:    gcmd.NoExtraArgs,
	PreRunE: preRunInitialize,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		app, err := newBoardApp(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "new board")
		}
		defer app.Close()

		posts, err := app.store.ReadAll(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "read posts")
		}
		if limit > 0 && len(posts) > limit {
			posts = posts[:limit]
		}

		return writePosts(cmd.OutOrStdout(), posts, jsonOutput(cmd))
	},
}

var summaryCMD = &cobra.Command{
	Use:     "summary",
	Short:   "print a synopsis of the newest posts",
	Args:    gcmd.NoExtraArgs,
	PreRunE: preRunInitialize,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newBoardApp(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "new board")
		}
		defer app.Close()

		_, err = fmt.Fprintln(cmd.OutOrStdout(), app.summary.Summarize(cmd.Context()))
		return errors.WithStack(err)
	},
}

func init() {
	postCMD.Flags().String("nickname", "", "author name, empty means "+board.DefaultNickname)
	postCMD.Flags().String("content", "", "post body")
	postCMD.Flags().String("image", "", "path to a jpeg, png or webp image")
	postCMD.Flags().Bool("json", false, "print the post as json")

	listCMD.Flags().Int("limit", 0, "max posts to print, 0 means all")
	listCMD.Flags().Bool("json", false, "print posts as json")

	rootCMD.AddCommand(postCMD, listCMD, summaryCMD)
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// describeSubmissionError turns a typed submission failure into a readable error.
func describeSubmissionError(err error) error {
	serr, ok := board.AsSubmissionError(err)
	if !ok {
		return errors.Wrap(err, "submit post")
	}

	if serr.Kind == board.KindRateLimit {
		return errors.Errorf("rejected (%s): retry in %ds", serr.Kind, serr.RemainingSeconds)
	}
	return errors.Errorf("rejected (%s): %s", serr.Kind, serr.Message)
}

// writePosts prints posts as json (the HTTP representation) or as text.
func writePosts(w io.Writer, posts []board.Post, asJSON bool) error {
	if asJSON {
		dtos := make([]*web.PostDTO, 0, len(posts))
		for _, p := range posts {
			dto, err := web.NewPostDTO(p)
			if err != nil {
				return errors.WithStack(err)
			}
			dtos = append(dtos, dto)
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(dtos), "encode posts")
	}

	if len(posts) == 0 {
		_, err := fmt.Fprintln(w, board.SummaryNoPosts)
		return errors.WithStack(err)
	}

	var sb strings.Builder
	for _, p := range posts {
		fmt.Fprintf(&sb, "[%s] %s (%s)\n", p.ID, p.Nickname, p.CreatedTime().Local().Format(time.DateTime))
		sb.WriteString(p.Content + "\n")
		if p.ImageURL != "" {
			sb.WriteString("[image attached]\n")
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return errors.WithStack(err)
}
