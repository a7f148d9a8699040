// Package main is the entry point for the object store CLI.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var (
	serverURL   string
	clientID    string
	clientToken string
	output      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "objectstore-cli",
		Short: "CLI for the object store",
		Long:  `A command-line tool for storing, retrieving, tagging, and querying JSON objects in the object store.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Object store server URL")
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", "", "Client id for authentication")
	rootCmd.PersistentFlags().StringVar(&clientToken, "token", "", "Client token for authentication")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format: table, json")

	// Store command
	storeCmd := &cobra.Command{
		Use:   "store <namespace> [object-id]",
		Short: "Store a JSON object revision",
		Long: `Store a JSON object in a namespace. The payload is read from --file,
or from stdin when no file is given. Without an object id the server
mints one. Storing content identical to the current head reuses its
revision instead of creating a new one.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: storeObject,
	}
	storeCmd.Flags().StringP("file", "f", "", "Read the payload from a file instead of stdin")
	storeCmd.Flags().String("tags", "", "Comma-separated tags to bind to the object")

	// Get command
	getCmd := &cobra.Command{
		Use:     "get <namespace> <object-id>",
		Aliases: []string{"retrieve"},
		Short:   "Retrieve an object revision",
		Args:    cobra.ExactArgs(2),
		RunE:    getObject,
	}
	getCmd.Flags().String("revision", "", "Retrieve a specific revision instead of the head")
	getCmd.Flags().String("tag", "", "Only match the object if it carries this tag")
	getCmd.Flags().String("prop", "", "Return a single property: object, object_tags, object_timestamp, revision_id, object_id, revisions")

	// Delete command
	deleteCmd := &cobra.Command{
		Use:   "delete <namespace> <object-id>",
		Short: "Delete an object or one of its revisions",
		Args:  cobra.ExactArgs(2),
		RunE:  deleteObject,
	}
	deleteCmd.Flags().String("revision", "", "Delete only this revision")

	// Revisions command
	revisionsCmd := &cobra.Command{
		Use:   "revisions <namespace> <object-id>",
		Short: "List an object's revisions, newest first",
		Args:  cobra.ExactArgs(2),
		RunE:  listRevisions,
	}

	// Tag commands
	tagsCmd := &cobra.Command{
		Use:   "tags",
		Short: "Manage object tags",
	}

	tagsGetCmd := &cobra.Command{
		Use:   "get <namespace> <object-id>",
		Short: "Show an object's tags",
		Args:  cobra.ExactArgs(2),
		RunE:  getTags,
	}

	tagsAddCmd := &cobra.Command{
		Use:   "add <namespace> <object-id> <tags>",
		Short: "Add tags to an object",
		Args:  cobra.ExactArgs(3),
		RunE:  addTags,
	}

	tagsReplaceCmd := &cobra.Command{
		Use:   "replace <namespace> <object-id> <tags>",
		Short: "Replace an object's tag set",
		Args:  cobra.ExactArgs(3),
		RunE:  replaceTags,
	}

	tagsRemoveCmd := &cobra.Command{
		Use:   "remove <namespace> <object-id> [tags]",
		Short: "Remove named tags, or all tags when none are given",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  removeTags,
	}

	tagsCmd.AddCommand(tagsGetCmd, tagsAddCmd, tagsReplaceCmd, tagsRemoveCmd)

	// Query command
	queryCmd := &cobra.Command{
		Use:   "query <namespace>",
		Short: "List object ids in a namespace",
		Args:  cobra.ExactArgs(1),
		RunE:  queryObjects,
	}
	queryCmd.Flags().String("tag", "", "Only list objects carrying this tag")

	// Clear command
	clearCmd := &cobra.Command{
		Use:   "clear <namespace>",
		Short: "Clear a namespace",
		Long: `Remove objects from a namespace. Without --tags everything goes;
with --tags, only objects carrying any of the named tags. Requires
--yes to confirm.`,
		Args: cobra.ExactArgs(1),
		RunE: clearNamespace,
	}
	clearCmd.Flags().String("tags", "", "Comma-separated tags restricting the clear")
	clearCmd.Flags().Bool("yes", false, "Confirm the clear (required)")

	// Mappings command
	mappingsCmd := &cobra.Command{
		Use:   "mappings",
		Short: "List namespace mappings",
		RunE:  listMappings,
	}
	mappingsCmd.Flags().String("namespace", "", "Filter by namespace")

	// Status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check server health",
		RunE:  serverStatus,
	}

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("objectstore-cli %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}

	rootCmd.AddCommand(storeCmd, getCmd, deleteCmd, revisionsCmd, tagsCmd, queryCmd, clearCmd, mappingsCmd, statusCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// HTTP client helper for endpoints answering with a response envelope.
func doRequest(method, path string, body io.Reader) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := doValueRequest(method, path, body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// doValueRequest performs an API call and decodes the success body into out.
// Property retrievals answer with a bare JSON value rather than an envelope,
// so out may point at any JSON shape; error bodies are always envelopes.
func doValueRequest(method, path string, body io.Reader, out interface{}) error {
	reqURL := strings.TrimSuffix(serverURL, "/") + path

	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if clientID != "" {
		req.Header.Set("x-client-id", clientID)
		req.Header.Set("x-client-token", clientToken)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req) // #nosec G704 -- CLI tool; URL is from user-provided --server flag
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := "unknown error"
		var envelope map[string]interface{}
		if json.Unmarshal(raw, &envelope) == nil {
			if m, ok := envelope["message"].(string); ok {
				msg = m
			}
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, msg)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func storeObject(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	tags, _ := cmd.Flags().GetString("tags")

	var payload []byte
	var err error
	if file != "" {
		payload, err = os.ReadFile(file) // #nosec G304 -- path is a user-provided flag
	} else {
		payload, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	path := "/svc/v1/store/" + url.PathEscape(args[0])
	if len(args) == 2 {
		path += "/" + url.PathEscape(args[1])
	}
	if tags != "" {
		path += "?tags=" + url.QueryEscape(tags)
	}

	result, err := doRequest("POST", path, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}

	if output == "json" {
		return printJSON(result)
	}

	fmt.Printf("Object ID:   %v\n", result["object_id"])
	fmt.Printf("Revision:    %v\n", result["revision_id"])
	fmt.Printf("New Version: %v\n", result["new_version"])
	fmt.Printf("Timestamp:   %v\n", result["object_timestamp"])
	return nil
}

func getObject(cmd *cobra.Command, args []string) error {
	revision, _ := cmd.Flags().GetString("revision")
	tag, _ := cmd.Flags().GetString("tag")
	prop, _ := cmd.Flags().GetString("prop")

	path := "/svc/v1/retrieve/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1])
	if prop != "" {
		path += "/" + url.PathEscape(prop)
	}
	query := url.Values{}
	if revision != "" {
		query.Set("revision_id", revision)
	}
	if tag != "" {
		query.Set("tag", tag)
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	// A named property (other than revisions) comes back as a bare JSON
	// value, not an envelope.
	if prop != "" && prop != "revisions" {
		var value interface{}
		if err := doValueRequest("GET", path, nil, &value); err != nil {
			return err
		}
		if output == "json" || prop == "object" || prop == "object_tags" {
			return printJSON(value)
		}
		fmt.Printf("%v\n", value)
		return nil
	}

	result, err := doRequest("GET", path, nil)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func deleteObject(cmd *cobra.Command, args []string) error {
	revision, _ := cmd.Flags().GetString("revision")

	path := "/svc/v1/delete/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1])
	if revision != "" {
		path += "?revision_id=" + url.QueryEscape(revision)
	}

	result, err := doRequest("DELETE", path, nil)
	if err != nil {
		return err
	}

	if output == "json" {
		return printJSON(result)
	}

	if revision != "" {
		fmt.Printf("Revision %s deleted.\n", revision)
	} else {
		fmt.Printf("Object %s deleted.\n", args[1])
	}
	return nil
}

func listRevisions(cmd *cobra.Command, args []string) error {
	path := "/svc/v1/query/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1])
	result, err := doRequest("GET", path, nil)
	if err != nil {
		return err
	}

	revisions, ok := result["revisions"].([]interface{})
	if !ok {
		return fmt.Errorf("unexpected response format")
	}

	if output == "json" {
		return printJSON(revisions)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REVISION\tTIMESTAMP")
	for _, r := range revisions {
		rev := r.(map[string]interface{})
		fmt.Fprintf(w, "%v\t%v\n", rev["revision_id"], rev["timestamp"])
	}
	return w.Flush()
}

func getTags(cmd *cobra.Command, args []string) error {
	path := "/svc/v1/tags/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1])
	result, err := doRequest("GET", path, nil)
	if err != nil {
		return err
	}
	return printTags(result)
}

func addTags(cmd *cobra.Command, args []string) error {
	path := "/svc/v1/tags/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1]) +
		"?tags=" + url.QueryEscape(args[2])
	result, err := doRequest("PATCH", path, nil)
	if err != nil {
		return err
	}
	return printTags(result)
}

func replaceTags(cmd *cobra.Command, args []string) error {
	path := "/svc/v1/tags/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1]) +
		"?tags=" + url.QueryEscape(args[2])
	result, err := doRequest("PUT", path, nil)
	if err != nil {
		return err
	}
	return printTags(result)
}

func removeTags(cmd *cobra.Command, args []string) error {
	path := "/svc/v1/tags/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1])
	if len(args) == 3 {
		path += "?tags=" + url.QueryEscape(args[2])
	}
	result, err := doRequest("DELETE", path, nil)
	if err != nil {
		return err
	}
	return printTags(result)
}

func printTags(result map[string]interface{}) error {
	if output == "json" {
		return printJSON(result)
	}

	tags, _ := result["tags"].([]interface{})
	if len(tags) == 0 {
		fmt.Println("(no tags)")
		return nil
	}
	for _, t := range tags {
		fmt.Printf("%v\n", t)
	}
	return nil
}

func queryObjects(cmd *cobra.Command, args []string) error {
	tag, _ := cmd.Flags().GetString("tag")

	path := "/svc/v1/query/" + url.PathEscape(args[0])
	if tag != "" {
		path += "?tag=" + url.QueryEscape(tag)
	}

	result, err := doRequest("GET", path, nil)
	if err != nil {
		return err
	}

	ids, ok := result["object_ids"].([]interface{})
	if !ok {
		return fmt.Errorf("unexpected response format")
	}

	if output == "json" {
		return printJSON(ids)
	}

	if len(ids) == 0 {
		fmt.Println("(no objects)")
		return nil
	}
	for _, id := range ids {
		fmt.Printf("%v\n", id)
	}
	return nil
}

func clearNamespace(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		return fmt.Errorf("clearing a namespace is destructive; pass --yes to confirm")
	}
	tags, _ := cmd.Flags().GetString("tags")

	path := "/svc/v1/clear/" + url.PathEscape(args[0]) + "?confirm=true"
	if tags != "" {
		path += "&tags=" + url.QueryEscape(tags)
	}

	result, err := doRequest("DELETE", path, nil)
	if err != nil {
		return err
	}

	if output == "json" {
		return printJSON(result)
	}

	if tags != "" {
		fmt.Printf("Namespace %s cleared of objects tagged %s.\n", args[0], tags)
	} else {
		fmt.Printf("Namespace %s cleared.\n", args[0])
	}
	return nil
}

func listMappings(cmd *cobra.Command, args []string) error {
	namespace, _ := cmd.Flags().GetString("namespace")

	path := "/svc/v1/mappings"
	if namespace != "" {
		path += "?namespace_id=" + url.QueryEscape(namespace)
	}

	result, err := doRequest("GET", path, nil)
	if err != nil {
		return err
	}

	mappings, ok := result["mappings"].([]interface{})
	if !ok {
		return fmt.Errorf("unexpected response format")
	}

	if output == "json" {
		return printJSON(mappings)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLIENT\tNAMESPACE\tIDENTIFIER\tCREATED")
	for _, m := range mappings {
		mapping := m.(map[string]interface{})
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n",
			mapping["client_id"],
			mapping["namespace_id"],
			mapping["identifier_name"],
			mapping["timestamp"],
		)
	}
	return w.Flush()
}

func serverStatus(cmd *cobra.Command, args []string) error {
	result, err := doRequest("GET", "/status", nil)
	if err != nil {
		return err
	}

	if output == "json" {
		return printJSON(result)
	}

	fmt.Printf("Status: %v\n", result["status"])
	return nil
}
