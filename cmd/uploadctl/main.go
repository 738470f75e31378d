package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"taeu.kr/uploadhub/internal/browse"
	"taeu.kr/uploadhub/internal/config"
	"taeu.kr/uploadhub/internal/journal"
	journalStore "taeu.kr/uploadhub/internal/journal/store"
	"taeu.kr/uploadhub/internal/platform/database"
	"taeu.kr/uploadhub/internal/upload"
)

type CreateCmd struct {
	UploadType string `arg:"positional,required" help:"upload type"`
	Name       string `arg:"positional,required" help:"new subdirectory name"`
}

type RenameCmd struct {
	UploadType string `arg:"positional,required" help:"upload type"`
	Path       string `arg:"positional,required" help:"current relative path"`
	NewName    string `arg:"positional,required" help:"new leaf name"`
}

type RemoveCmd struct {
	UploadType string `arg:"positional,required" help:"upload type"`
	Path       string `arg:"positional,required" help:"relative path to remove"`
}

type MoveCmd struct {
	From         string `arg:"positional,required" help:"source upload type"`
	To           string `arg:"positional,required" help:"target upload type"`
	Subdir       string `arg:"--subdir,required" help:"source subdirectory"`
	TargetSubdir string `arg:"--target-subdir" help:"target subdirectory (default: root)"`
	RemoveSource bool   `arg:"--remove-source" help:"delete the source after copying"`
	Policy       string `arg:"--policy" help:"overwrite|skip|rename|fail"`
}

type TreeCmd struct {
	UploadTypes []string `arg:"positional" help:"upload types (default: all)"`
	FullPaths   bool     `arg:"--full-paths" help:"key entries by absolute path"`
}

type UsageCmd struct {
	UploadType string `arg:"positional,required" help:"upload type"`
}

type JournalCmd struct {
	Limit      int    `arg:"--limit" default:"20" help:"number of entries"`
	UploadType string `arg:"--type" help:"filter by upload type"`
}

type Args struct {
	Config  string      `arg:"-c,--config" default:"config/config.dev.yaml" help:"config file"`
	Debug   bool        `arg:"--debug" help:"verbose logging"`
	Create  *CreateCmd  `arg:"subcommand:create" help:"create a subdirectory"`
	Rename  *RenameCmd  `arg:"subcommand:rename" help:"rename a subdirectory"`
	Remove  *RemoveCmd  `arg:"subcommand:remove" help:"remove a subdirectory"`
	Move    *MoveCmd    `arg:"subcommand:move" help:"copy data between upload types"`
	Tree    *TreeCmd    `arg:"subcommand:tree" help:"print the directory tree"`
	Usage   *UsageCmd   `arg:"subcommand:usage" help:"show disk usage"`
	Journal *JournalCmd `arg:"subcommand:journal" help:"list recorded operations"`
}

func (Args) Description() string {
	return "uploadctl manages upload type directories from the command line"
}

// app은 서버와 같은 구성으로 만든 업로드 구성 요소 묶음
type app struct {
	db       *sql.DB
	resolver *upload.Resolver
	manager  *upload.Manager
	mover    *upload.Mover
	usage    *upload.UsageService
	journal  *journal.Service
	builder  browse.Builder
}

func main() {
	var args Args
	p := arg.MustParse(&args)
	if p.Subcommand() == nil {
		p.Fail("missing subcommand")
	}

	os.Exit(run(context.Background(), args, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args Args, stdout, stderr io.Writer) int {
	level := zerolog.WarnLevel
	if args.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger()

	if err := config.SetConfigFile(args.Config); err != nil {
		fmt.Fprintf(stderr, "[uploadctl] %v\n", err)
		return 2
	}

	a, err := newApp(config.Conf, afero.NewOsFs(), logger)
	if err != nil {
		fmt.Fprintf(stderr, "[uploadctl] %v\n", err)
		return 2
	}
	defer a.db.Close()

	switch {
	case args.Create != nil:
		return printResult(stdout, stderr, a.manager.Create(ctx, upload.UploadType(args.Create.UploadType), args.Create.Name))
	case args.Rename != nil:
		cmd := args.Rename
		return printResult(stdout, stderr, a.manager.Rename(ctx, upload.UploadType(cmd.UploadType), cmd.Path, cmd.NewName))
	case args.Remove != nil:
		return printResult(stdout, stderr, a.manager.Remove(ctx, upload.UploadType(args.Remove.UploadType), args.Remove.Path))
	case args.Move != nil:
		return a.move(ctx, args.Move, stdout, stderr)
	case args.Tree != nil:
		return a.tree(args.Tree, stdout, stderr)
	case args.Usage != nil:
		return a.printUsage(ctx, args.Usage, stdout, stderr)
	case args.Journal != nil:
		return a.printJournal(ctx, args.Journal, stdout, stderr)
	}

	fmt.Fprintln(stderr, "[uploadctl] missing subcommand")
	return 2
}

func newApp(conf config.Config, fs afero.Fs, logger zerolog.Logger) (*app, error) {
	roots, err := upload.NewRoots(conf.Uploads.Types)
	if err != nil {
		return nil, fmt.Errorf("invalid upload types: %w", err)
	}
	resolver := upload.NewResolver(roots, fs)
	if conf.Uploads.CreateMissingRoots {
		if err := resolver.EnsureRoots(); err != nil {
			return nil, err
		}
	}

	policy, err := upload.ParseConflictPolicy(conf.Uploads.ConflictPolicy, upload.DefaultConflictPolicy)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(conf.Datasource.URL)
	if err != nil {
		return nil, err
	}

	journalService := journal.NewService(journalStore.NewStore(db))
	return &app{
		db:       db,
		resolver: resolver,
		manager:  upload.NewManager(resolver, fs, logger, journalService),
		mover:    upload.NewMover(resolver, fs, logger, journalService, policy),
		usage:    upload.NewUsageService(resolver, fs),
		journal:  journalService,
		builder:  browse.Builder{Fs: fs, FollowSymlinks: conf.Uploads.FollowSymlinks},
	}, nil
}

func (a *app) move(ctx context.Context, cmd *MoveCmd, stdout, stderr io.Writer) int {
	policy, err := upload.ParseConflictPolicy(cmd.Policy, "")
	if err != nil {
		fmt.Fprintf(stderr, "[uploadctl] %v\n", err)
		return 2
	}
	return printResult(stdout, stderr, a.mover.MoveData(ctx, upload.MoveRequest{
		CurrentUploadType:   upload.UploadType(cmd.From),
		TargetUploadType:    upload.UploadType(cmd.To),
		CurrentSubdirectory: cmd.Subdir,
		TargetSubdirectory:  cmd.TargetSubdir,
		RemoveCurrent:       cmd.RemoveSource,
		ConflictPolicy:      policy,
	}))
}

func (a *app) tree(cmd *TreeCmd, stdout, stderr io.Writer) int {
	types := a.resolver.Types()
	if len(cmd.UploadTypes) > 0 {
		types = types[:0:0]
		for _, raw := range cmd.UploadTypes {
			types = append(types, upload.NormalizeUploadType(raw))
		}
	}

	for _, uploadType := range types {
		root, err := a.resolver.RootFor(uploadType)
		if err != nil {
			fmt.Fprintf(stderr, "[uploadctl] %v\n", err)
			return 1
		}
		tree, err := a.builder.Build(root, !cmd.FullPaths)
		if err != nil {
			fmt.Fprintf(stderr, "[uploadctl] %s: %v\n", uploadType, err)
			return 1
		}
		fmt.Fprintf(stdout, "%s (%s)\n", uploadType, root)
		printTree(stdout, tree, 1)
	}
	return 0
}

func (a *app) printUsage(ctx context.Context, cmd *UsageCmd, stdout, stderr io.Writer) int {
	usage, err := a.usage.GetUsage(ctx, upload.UploadType(cmd.UploadType))
	if err != nil {
		fmt.Fprintf(stderr, "[uploadctl] %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%s\t%s\tused %s", usage.UploadType, usage.Root, usage.UsedHuman)
	if usage.TotalBytes > 0 {
		fmt.Fprintf(stdout, "\tfree %s of %s (%.1f%% used)", usage.FreeHuman, humanize.Bytes(usage.TotalBytes), usage.UsedPercent)
	}
	fmt.Fprintln(stdout)
	return 0
}

func (a *app) printJournal(ctx context.Context, cmd *JournalCmd, stdout, stderr io.Writer) int {
	var (
		entries []*journal.Entry
		err     error
	)
	if strings.TrimSpace(cmd.UploadType) != "" {
		entries, err = a.journal.ListByUploadType(ctx, upload.UploadType(cmd.UploadType), cmd.Limit)
	} else {
		entries, err = a.journal.ListRecent(ctx, cmd.Limit)
	}
	if err != nil {
		fmt.Fprintf(stderr, "[uploadctl] %v\n", err)
		return 1
	}

	for _, entry := range entries {
		status := "ok"
		switch {
		case entry.Partial:
			status = "partial"
		case !entry.Success:
			status = "failed"
		}
		target := entry.Path
		if entry.TargetUploadType != "" {
			target = fmt.Sprintf("%s -> %s:%s", entry.Path, entry.TargetUploadType, entry.TargetPath)
		} else if entry.NewName != "" {
			target = fmt.Sprintf("%s -> %s", entry.Path, entry.NewName)
		}
		fmt.Fprintf(stdout, "%s\t%s\t%s:%s\t%s\t%s\n",
			humanize.Time(entry.CreatedAt), entry.Operation, entry.UploadType, target, status, entry.Message)
	}
	return 0
}

// 부분 성공(복사는 되었으나 원본 삭제 실패)은 별도 종료 코드로 구분한다
const exitPartial = 3

// printResult는 결과 메시지를 출력하고 종료 코드를 돌려준다
func printResult(stdout, stderr io.Writer, result upload.OperationResult) int {
	switch {
	case !result.Success:
		fmt.Fprintln(stderr, result.Message)
		return 1
	case result.Partial:
		fmt.Fprintf(stderr, "warning: %s\n", result.Message)
		return exitPartial
	}
	fmt.Fprintln(stdout, result.Message)
	return 0
}

func printTree(w io.Writer, tree browse.Tree, depth int) {
	keys := make([]string, 0, len(tree))
	for key := range tree {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), key)
		printTree(w, tree[key], depth+1)
	}
}
