package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/alphabot-ai/quill/internal/client"
	"github.com/alphabot-ai/quill/internal/model"
)

var serverFlag = &cli.StringFlag{
	Name:    "server",
	Aliases: []string{"s"},
	Usage:   "server URL, defaults to the one saved by login",
	EnvVars: []string{"QUILL_SERVER"},
}

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	dim      = color.New(color.Faint).SprintFunc()
	bold     = color.New(color.Bold).SprintFunc()
)

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account and remember its token",
		Flags: []cli.Flag{
			serverFlag,
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, EnvVars: []string{"QUILL_PASSWORD"}, Required: true},
			&cli.StringFlag{Name: "bio"},
		},
		Action: func(c *cli.Context) error {
			cl, _, err := loadClient(c.String("server"))
			if err != nil {
				return err
			}
			user, err := cl.Register(c.Context, c.String("username"), c.String("email"), c.String("password"), c.String("bio"))
			if err != nil {
				return err
			}
			if err := rememberSession(cl, user); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s Registered %s (%s)\n", okMark, bold(user.Username), user.ID)
			return nil
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in and remember the token",
		Flags: []cli.Flag{
			serverFlag,
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, EnvVars: []string{"QUILL_PASSWORD"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			cl, _, err := loadClient(c.String("server"))
			if err != nil {
				return err
			}
			user, err := cl.Login(c.Context, c.String("email"), c.String("password"))
			if err != nil {
				return err
			}
			if err := rememberSession(cl, user); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s Logged in as %s\n", okMark, bold(user.Username))
			return nil
		},
	}
}

func rememberSession(cl *client.Client, user *model.User) error {
	return saveCLIConfig(&CLIConfig{
		ServerURL: cl.BaseURL,
		Username:  user.Username,
		Email:     user.Email,
		Token:     cl.Token,
	})
}

func postCommand() *cli.Command {
	return &cli.Command{
		Name:      "post",
		Usage:     "Publish a post",
		ArgsUsage: "[content file, or - for stdin]",
		Flags: []cli.Flag{
			serverFlag,
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true},
			&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Usage: "post body, instead of a file"},
		},
		Action: func(c *cli.Context) error {
			content, err := readContent(c, c.String("content"))
			if err != nil {
				return err
			}
			cl, err := loadAuthenticatedClient(c.String("server"))
			if err != nil {
				return err
			}
			post, err := cl.CreatePost(c.Context, c.String("title"), content)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s Posted %s\n", okMark, post.ID)
			return nil
		},
	}
}

// readContent prefers the inline value, then the file named by the first
// argument ("-" reads stdin).
func readContent(c *cli.Context, inline string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	name := c.Args().First()
	switch name {
	case "":
		return "", errors.New("content required: pass --content or a file")
	case "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	default:
		data, err := os.ReadFile(name)
		return string(data), err
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List posts, newest first",
		Flags:   []cli.Flag{serverFlag},
		Action: func(c *cli.Context) error {
			cl, _, err := loadClient(c.String("server"))
			if err != nil {
				return err
			}
			posts, err := cl.ListPosts(c.Context)
			if err != nil {
				return err
			}
			renderPosts(c.App.Writer, posts, false)
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Full-text search over titles and content",
		ArgsUsage: `<terms> ["exact phrase"] [-excluded]`,
		Flags:     []cli.Flag{serverFlag},
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return errors.New("search query required")
			}
			cl, _, err := loadClient(c.String("server"))
			if err != nil {
				return err
			}
			posts, err := cl.SearchPosts(c.Context, query)
			if err != nil {
				return err
			}
			renderPosts(c.App.Writer, posts, true)
			return nil
		},
	}
}

func renderPosts(w io.Writer, posts []model.Post, withScore bool) {
	if len(posts) == 0 {
		fmt.Fprintln(w, dim("No posts."))
		return
	}
	header := []string{"ID", "Title", "Author", "Comments", "Created"}
	if withScore {
		header = append(header, "Score")
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	for _, p := range posts {
		row := []string{
			p.ID,
			truncate(p.Title, 48),
			p.Author.Username,
			fmt.Sprint(len(p.CommentIDs)),
			p.CreatedAt.Local().Format(time.DateTime),
		}
		if withScore {
			row = append(row, fmt.Sprintf("%.3f", p.Score))
		}
		table.Append(row)
	}
	table.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a post with its comments",
		ArgsUsage: "<post id>",
		Flags:     []cli.Flag{serverFlag},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, 0, "post id")
			if err != nil {
				return err
			}
			cl, _, err := loadClient(c.String("server"))
			if err != nil {
				return err
			}
			detail, err := cl.GetPost(c.Context, id)
			if err != nil {
				return err
			}
			renderPost(c.App.Writer, detail)
			return nil
		},
	}
}

func renderPost(w io.Writer, d *model.PostDetail) {
	fmt.Fprintln(w, bold(d.Title))
	fmt.Fprintf(w, "%s\n\n", dim(fmt.Sprintf("by %s on %s · %s", d.Author.Username, d.CreatedAt.Local().Format(time.DateTime), d.ID)))
	fmt.Fprintln(w, d.Content)
	if len(d.Comments) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", bold(fmt.Sprintf("%d comments", len(d.Comments))))
	for _, cm := range d.Comments {
		fmt.Fprintf(w, "  %s %s\n", color.CyanString(cm.Author.Username), dim(cm.ID))
		fmt.Fprintf(w, "    %s\n", cm.Content)
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Change the title or content of your post",
		ArgsUsage: "<post id>",
		Flags: []cli.Flag{
			serverFlag,
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}},
			&cli.StringFlag{Name: "content", Aliases: []string{"c"}},
		},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, 0, "post id")
			if err != nil {
				return err
			}
			var patch model.PostPatch
			if c.IsSet("title") {
				v := c.String("title")
				patch.Title = &v
			}
			if c.IsSet("content") {
				v := c.String("content")
				patch.Content = &v
			}
			if patch.Title == nil && patch.Content == nil {
				return errors.New("nothing to change: pass --title and/or --content")
			}
			cl, err := loadAuthenticatedClient(c.String("server"))
			if err != nil {
				return err
			}
			if _, err := cl.UpdatePost(c.Context, id, patch); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s Updated %s\n", okMark, id)
			return nil
		},
	}
}

func rmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete your post",
		ArgsUsage: "<post id>",
		Flags:     []cli.Flag{serverFlag},
		Action: func(c *cli.Context) error {
			id, err := requireArg(c, 0, "post id")
			if err != nil {
				return err
			}
			cl, err := loadAuthenticatedClient(c.String("server"))
			if err != nil {
				return err
			}
			if err := cl.DeletePost(c.Context, id); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s Deleted %s\n", okMark, id)
			return nil
		},
	}
}

func commentCommand() *cli.Command {
	return &cli.Command{
		Name:      "comment",
		Usage:     "Comment on a post",
		ArgsUsage: "<post id> <text...>",
		Flags:     []cli.Flag{serverFlag},
		Action: func(c *cli.Context) error {
			postID, err := requireArg(c, 0, "post id")
			if err != nil {
				return err
			}
			text := strings.Join(c.Args().Tail(), " ")
			if strings.TrimSpace(text) == "" {
				return errors.New("comment text required")
			}
			cl, err := loadAuthenticatedClient(c.String("server"))
			if err != nil {
				return err
			}
			cm, err := cl.AddComment(c.Context, postID, text)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s Comment %s on %s\n", okMark, cm.ID, postID)
			return nil
		},
	}
}

func uncommentCommand() *cli.Command {
	return &cli.Command{
		Name:      "uncomment",
		Usage:     "Delete your comment",
		ArgsUsage: "<post id> <comment id>",
		Flags:     []cli.Flag{serverFlag},
		Action: func(c *cli.Context) error {
			postID, err := requireArg(c, 0, "post id")
			if err != nil {
				return err
			}
			commentID, err := requireArg(c, 1, "comment id")
			if err != nil {
				return err
			}
			cl, err := loadAuthenticatedClient(c.String("server"))
			if err != nil {
				return err
			}
			if err := cl.DeleteComment(c.Context, postID, commentID); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s Deleted comment %s\n", okMark, commentID)
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the saved session and whether the server is up",
		Flags: []cli.Flag{serverFlag},
		Action: func(c *cli.Context) error {
			cl, cfg, err := loadClient(c.String("server"))
			if err != nil {
				return err
			}
			w := c.App.Writer
			fmt.Fprintf(w, "Server:  %s\n", cfg.ServerURL)
			if cfg.Token != "" {
				fmt.Fprintf(w, "User:    %s <%s>\n", bold(cfg.Username), cfg.Email)
			} else {
				fmt.Fprintf(w, "User:    %s\n", dim("not logged in"))
			}
			if err := cl.Health(c.Context); err != nil {
				fmt.Fprintf(w, "Health:  %s %v\n", failMark, err)
				return nil
			}
			info, err := cl.Version(c.Context)
			if err != nil {
				fmt.Fprintf(w, "Health:  %s\n", okMark)
				return nil
			}
			fmt.Fprintf(w, "Health:  %s version %s (%s)\n", okMark, info["version"], info["commit"])
			return nil
		},
	}
}

func requireArg(c *cli.Context, i int, name string) (string, error) {
	v := c.Args().Get(i)
	if v == "" {
		return "", fmt.Errorf("%s required", name)
	}
	return v, nil
}
