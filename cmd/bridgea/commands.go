package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// --- save ---

var saveCmd = &cobra.Command{
	Use:   "save <url>",
	Short: "Extract metadata for a URL and save it as a link",
	Long: `Extract metadata for a URL and save it as a link.

Examples:
  bridgea save https://example.com/article
  bridgea save https://dribbble.com/shots/123 --user alice --favorite`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]
		user, _ := cmd.Flags().GetString("user")
		favorite, _ := cmd.Flags().GetBool("favorite")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/metadata?url="+url.QueryEscape(target))
		if err != nil {
			return err
		}

		var meta struct {
			URL         string   `json:"url"`
			Title       string   `json:"title"`
			Description string   `json:"description"`
			ImageURL    string   `json:"imageUrl"`
			Tags        []string `json:"tags"`
			Categories  []string `json:"categories"`
		}
		if err := decodeJSON(resp, &meta); err != nil {
			return err
		}

		body := map[string]any{
			"userId":      user,
			"url":         target,
			"title":       meta.Title,
			"description": meta.Description,
			"imageUrl":    meta.ImageURL,
			"tags":        meta.Tags,
			"categories":  meta.Categories,
			"favorite":    favorite,
		}
		saveResp, err := client.post(cmd.Context(), "/links", body)
		if err != nil {
			return err
		}

		var saved struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		if err := decodeJSON(saveResp, &saved); err != nil {
			return err
		}

		printSuccess("Saved %s (%s)", saved.Title, saved.ID)
		if len(meta.Tags) > 0 {
			printStatus("Tags", "%s", strings.Join(meta.Tags, ", "))
		}
		if len(meta.Categories) > 0 {
			printStatus("Categories", "%s", strings.Join(meta.Categories, ", "))
		}
		return nil
	},
}

func init() {
	saveCmd.Flags().String("user", "local", "user ID to save the link under")
	saveCmd.Flags().Bool("favorite", false, "mark the link as a favorite")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over saved links",
	Long: `Semantic search over saved links.

The query may mix free text with key:value filters:
  bridgea search minimalist packaging
  bridgea search tag:design category:inspiration
  bridgea search espresso title:guide --limit 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{
			"message":   query,
			"sessionId": "cli",
			"userId":    user,
			"limit":     limit,
			"offset":    offset,
		}
		resp, err := client.post(cmd.Context(), "/search", body)
		if err != nil {
			return err
		}

		var result struct {
			Answer string `json:"answer"`
			Total  int    `json:"total"`
			Links  []struct {
				URL         string   `json:"url"`
				Title       string   `json:"title"`
				Description string   `json:"description"`
				Tags        []string `json:"tags"`
				Score       int      `json:"score"`
				Distance    float32  `json:"distance"`
			} `json:"links"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Links) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, l := range result.Links {
			title := l.Title
			if title == "" {
				title = l.URL
			}
			fmt.Printf("\n%s [score: %d, distance: %.3f]\n", colorize(colorBold, fmt.Sprintf("%d. %s", offset+i+1, title)), l.Score, l.Distance)
			fmt.Printf("  %s\n", colorize(colorCyan, l.URL))
			if len(l.Tags) > 0 {
				fmt.Printf("  Tags: %s\n", strings.Join(l.Tags, ", "))
			}
			desc := l.Description
			if len(desc) > 200 {
				desc = desc[:200] + "..."
			}
			if desc != "" {
				fmt.Printf("  %s\n", desc)
			}
		}
		fmt.Printf("\n%d of %d matches shown\n", len(result.Links), result.Total)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("user", "local", "scope search to one user's links")
	searchCmd.Flags().Int("limit", 10, "maximum number of results")
	searchCmd.Flags().Int("offset", 0, "number of results to skip")
}

// --- links ---

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Manage saved links",
}

var linksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved links, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")
		filter, _ := cmd.Flags().GetString("filter")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/links?userId=%s&limit=%d", url.QueryEscape(user), limit)
		if filter != "" {
			path += "&q=" + url.QueryEscape(filter)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var links []struct {
			ID        string `json:"id"`
			URL       string `json:"url"`
			Title     string `json:"title"`
			Favorite  bool   `json:"favorite"`
			CreatedAt string `json:"createdAt"`
		}
		if err := decodeJSON(resp, &links); err != nil {
			return err
		}

		if len(links) == 0 {
			fmt.Println("No links saved.")
			return nil
		}

		for _, l := range links {
			marker := " "
			if l.Favorite {
				marker = "*"
			}
			title := l.Title
			if len(title) > 60 {
				title = title[:60] + "..."
			}
			fmt.Printf("%s %s  %-60s  %s\n",
				marker,
				colorize(colorCyan, l.ID[:8]),
				title,
				l.URL,
			)
		}
		return nil
	},
}

var linksDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved link and its vectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/links/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted link %s", args[0])
		return nil
	},
}

func init() {
	linksListCmd.Flags().String("user", "local", "user whose links to list")
	linksListCmd.Flags().Int("limit", 20, "maximum number of links to list")
	linksListCmd.Flags().String("filter", "", "only list links whose search terms contain this text")
	linksCmd.AddCommand(linksListCmd)
	linksCmd.AddCommand(linksDeleteCmd)
}
