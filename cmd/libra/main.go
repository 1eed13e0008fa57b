// Command libra is a CLI client for the libra library service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mravshan/libra/internal/client/api"
	"github.com/mravshan/libra/internal/client/credstore"
	"github.com/mravshan/libra/internal/client/session"
)

// ---- config ----

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "libra")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "libra")
}

func credPath() string { return filepath.Join(cfgDir(), "credentials.json") }

func openStore() (*credstore.FileStore, error) {
	return credstore.NewFileStore(credPath())
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func openAvatar(path string) (string, io.Reader) {
	if path == "" {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		fail(err)
	}
	return filepath.Base(path), f
}

func usage() {
	fmt.Fprintf(os.Stderr, `libra CLI
Usage:
  libra -addr URL <cmd> [args]

Commands:
  version
  register     -u <username> -p <password> [-email e] [-first f] [-last l] [-region r] [-avatar file]
  login        -u <username> -p <password>              (saves session)
  logout
  status                                                (resolves the stored session)
  whoami                                                (cached profile)
  top-picks
  trending
  genres
  genre        -g <genre>
  books        [-page n]
  requested                                             (books to return)
  history                                               (previously returned)
  recent
  borrow       -id <book uuid> [-days n]
  return       -id <book uuid>
  profile-edit [-email e] [-first f] [-middle m] [-last l] [-region r] [-avatar file]
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the backend.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore()
	if err != nil {
		fail(err)
	}
	cli := api.New(*addr, api.StoreTokenSource{Store: store})
	mgr := session.NewManager(cli, store, zap.NewNop())

	switch cmd {

	case "version":
		fmt.Printf("libra %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		email := fs.String("email", "", "email")
		first := fs.String("first", "", "first name")
		middle := fs.String("middle", "", "middle name")
		last := fs.String("last", "", "last name")
		region := fs.String("region", "", "region")
		avatar := fs.String("avatar", "", "avatar image file")
		_ = fs.Parse(flag.Args()[1:])
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}

		name, rd := openAvatar(*avatar)
		id, err := cli.Register(ctx, api.RegisterForm{
			Username:   *u,
			Password:   *p,
			Email:      *email,
			FirstName:  *first,
			MiddleName: *middle,
			LastName:   *last,
			Region:     *region,
			AvatarName: name,
			Avatar:     rd,
		})
		if err != nil {
			fail(err)
		}
		fmt.Println(id)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}

		profile, err := mgr.Login(ctx, *u, *p)
		if err != nil {
			fail(err)
		}
		fmt.Printf("ok, logged in as %s\n", profile.Username)

	case "logout":
		if err := mgr.Logout(ctx); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "status":
		st, err := mgr.Bootstrap(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
		fmt.Println(st)

	case "whoami":
		p, err := mgr.Profile()
		if err != nil {
			fail(fmt.Errorf("no cached profile (login first)"))
		}
		printJSON(p)

	case "top-picks":
		out, err := cli.TopPicks(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "trending":
		out, err := cli.Trending(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "genres":
		out, err := cli.PopularGenres(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "genre":
		fs := flag.NewFlagSet("genre", flag.ExitOnError)
		g := fs.String("g", "", "genre name")
		_ = fs.Parse(flag.Args()[1:])
		if *g == "" {
			fmt.Fprintln(os.Stderr, "need -g")
			os.Exit(1)
		}
		out, err := cli.ByGenre(ctx, *g)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "books":
		fs := flag.NewFlagSet("books", flag.ExitOnError)
		page := fs.Int("page", 1, "page number (1-based)")
		_ = fs.Parse(flag.Args()[1:])
		out, err := cli.Browse(ctx, *page)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "requested":
		out, err := cli.ToBorrows(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "history":
		out, err := cli.PreviousBorrows(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "recent":
		out, err := cli.RecentBorrows(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "borrow":
		fs := flag.NewFlagSet("borrow", flag.ExitOnError)
		id := fs.String("id", "", "book id (uuid)")
		days := fs.Int("days", 14, "borrow duration in days")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		b, err := cli.Borrow(ctx, *id, *days)
		if err != nil {
			fail(err)
		}
		printJSON(b)

	case "return":
		fs := flag.NewFlagSet("return", flag.ExitOnError)
		id := fs.String("id", "", "book id (uuid)")
		_ = fs.Parse(flag.Args()[1:])
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		b, err := cli.Return(ctx, *id)
		if err != nil {
			fail(err)
		}
		printJSON(b)

	case "profile-edit":
		fs := flag.NewFlagSet("profile-edit", flag.ExitOnError)
		email := fs.String("email", "", "email")
		first := fs.String("first", "", "first name")
		middle := fs.String("middle", "", "middle name")
		last := fs.String("last", "", "last name")
		region := fs.String("region", "", "region")
		avatar := fs.String("avatar", "", "avatar image file")
		_ = fs.Parse(flag.Args()[1:])

		name, rd := openAvatar(*avatar)
		p, err := cli.EditProfile(ctx, api.ProfileForm{
			Email:      *email,
			FirstName:  *first,
			MiddleName: *middle,
			LastName:   *last,
			Region:     *region,
			AvatarName: name,
			Avatar:     rd,
		})
		if err != nil {
			fail(err)
		}
		// keep the local cache in step with the server
		if b, err := json.Marshal(p); err == nil {
			_ = store.Set(credstore.KeyUser, string(b))
		}
		printJSON(p)

	default:
		usage()
	}
}
