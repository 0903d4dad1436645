// Command inspect dumps talkify's badger documents as tables, for poking at
// a database offline. Point it at a (stopped) server's data directory.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"talkify/domain"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, conv:, user:id:)")
	limit := flag.Int("limit", 100, "Maximum rows to print")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	color.Bold.Printf("Scanning prefix %q in %s\n", *prefix, *dbPath)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headersFor(*prefix))
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			if rows >= *limit {
				break
			}
			item := it.Item()
			key := string(item.Key())

			// Pointer entries hold a key or id, not a document.
			if strings.HasPrefix(key, "msgid:") || strings.HasPrefix(key, "convid:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				row, err := rowFor(*prefix, key, v)
				if err != nil {
					fmt.Printf("Error decoding key %s: %v\n", key, err)
					return nil
				}
				table.Append(row)
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	color.Green.Printf("%d rows\n", rows)
}

func headersFor(prefix string) []string {
	switch {
	case strings.HasPrefix(prefix, "conv"):
		return []string{"Key", "ID", "Participants", "Last Activity", "Unread"}
	case strings.HasPrefix(prefix, "user"):
		return []string{"Key", "ID", "Username", "Language", "Status", "Last Seen"}
	default:
		return []string{"Key", "ID", "From", "To", "Status", "Original", "Translated"}
	}
}

func rowFor(prefix, key string, value []byte) ([]string, error) {
	switch {
	case strings.HasPrefix(prefix, "conv"):
		var conv domain.Conversation
		if err := json.Unmarshal(value, &conv); err != nil {
			return nil, err
		}
		unread := ""
		for user, count := range conv.UnreadCount {
			unread += fmt.Sprintf("%s:%d ", shorten(user), count)
		}
		return []string{
			key,
			shorten(conv.ID.String()),
			shorten(conv.Participants[0]) + " | " + shorten(conv.Participants[1]),
			conv.LastMessageAt.Format("2006-01-02 15:04:05"),
			unread,
		}, nil

	case strings.HasPrefix(prefix, "user"):
		var user domain.User
		if err := json.Unmarshal(value, &user); err != nil {
			return nil, err
		}
		return []string{
			key,
			shorten(user.ID),
			user.Username,
			user.PreferredLanguage,
			string(user.Status),
			user.LastSeen.Format("2006-01-02 15:04:05"),
		}, nil

	default:
		var message domain.Message
		if err := json.Unmarshal(value, &message); err != nil {
			return nil, err
		}
		return []string{
			key,
			shorten(message.ID.String()),
			shorten(message.SenderID),
			shorten(message.ReceiverID),
			string(message.Status),
			truncate(message.OriginalText, 40),
			truncate(message.TranslatedText, 40),
		}, nil
	}
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
