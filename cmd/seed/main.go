package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/alphabot-ai/quill/internal/client"
)

var authors = []struct {
	name string
	bio  string
}{
	{"ada", "Writes about compilers and coffee"},
	{"grace", "Debugging since before it was cool"},
	{"linus", "Mostly kernels, occasionally gardening"},
	{"barbara", "Abstractions all the way down"},
	{"ken", "Small tools, sharp edges"},
}

var posts = []struct {
	title   string
	content string
}{
	{"Tuning SQLite for small services", "WAL mode, busy timeouts and a single writer go a long way before you need a database server."},
	{"Full-text search without a search cluster", "Both SQLite FTS5 and PostgreSQL tsvector rank results well enough for a blog."},
	{"Why I stopped writing ORMs", "Plain SQL with a thin scanning layer is easier to read six months later."},
	{"Graceful shutdown in Go", "Catch the signal, stop accepting connections and give in-flight requests a deadline."},
	{"Notes on password hashing", "bcrypt is still a sensible default. Pick a cost that takes a few hundred milliseconds."},
	{"Designing a tiny REST API", "Keep resources flat, return the created object and use 404 for things callers cannot see."},
	{"Testing against a real Postgres", "Containers make it cheap to run the same queries your production database will see."},
	{"The case for boring technology", "Every new dependency is something you will have to upgrade at 3am."},
}

var remarks = []string{
	"Great write-up, bookmarking this.",
	"Have you measured this under write-heavy load?",
	"We did something similar and hit the same wall.",
	"Could you share the schema you ended up with?",
	"I disagree with the conclusion but the reasoning is solid.",
	"This matches my experience exactly.",
	"Would love a follow-up on the failure modes.",
	"Short and to the point. Thanks!",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Quill server URL")
	flag.Parse()

	ctx := context.Background()
	log.Printf("Seeding %s...\n", *baseURL)

	var clients []*client.Client
	for _, a := range authors {
		c := client.New(*baseURL)
		if _, err := c.Register(ctx, a.name, a.name+"@example.com", "pw-"+a.name, a.bio); err != nil {
			log.Fatalf("register %s: %v", a.name, err)
		}
		log.Printf("✓ Registered %s", a.name)
		clients = append(clients, c)
	}

	var postIDs []string
	for _, p := range posts {
		idx := rand.Intn(len(clients))
		post, err := clients[idx].CreatePost(ctx, p.title, p.content)
		if err != nil {
			log.Printf("✗ Failed to post: %v", err)
			continue
		}
		postIDs = append(postIDs, post.ID)
		log.Printf("✓ Posted %s: %s (by %s)", post.ID, p.title, authors[idx].name)

		// Spread out created_at so listings have a stable order.
		time.Sleep(20 * time.Millisecond)
	}

	var commentCount int
	for _, postID := range postIDs {
		n := rand.Intn(4) + 1
		for i := 0; i < n; i++ {
			idx := rand.Intn(len(clients))
			cm, err := clients[idx].AddComment(ctx, postID, remarks[rand.Intn(len(remarks))])
			if err != nil {
				log.Printf("✗ Failed to comment: %v", err)
				continue
			}
			commentCount++
			log.Printf("  ↳ Comment %s (by %s)", cm.ID, authors[idx].name)
		}
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Authors:  %d\n", len(authors))
	fmt.Printf("Posts:    %d\n", len(postIDs))
	fmt.Printf("Comments: %d\n", commentCount)
	fmt.Printf("\nLog in with <name>@example.com / pw-<name>, e.g. quill login -s %s -e ada@example.com -p pw-ada\n", *baseURL)
}
