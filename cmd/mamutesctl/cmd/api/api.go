package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/config"
	"github.com/spf13/cobra"
)

// APICmd is the parent command for raw API calls
var APICmd = &cobra.Command{
	Use:   "api",
	Short: "Call any API endpoint with the stored session",
	Long: `Sends authenticated JSON requests to the API. Paths are relative to the API
root; a leading /api/ is accepted and ignored. Expired access tokens are renewed
and the request replayed transparently.`,
}

var (
	queryParams []string
	data        string
)

var getCmd = &cobra.Command{
	Use:     "get <path>",
	Short:   "Send a GET request",
	Example: `  mamutesctl api get trainings/ -q season=2026`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := parseQuery(queryParams)
		if err != nil {
			return err
		}
		return call(cmd, http.MethodGet, args[0], query, nil)
	},
}

var postCmd = &cobra.Command{
	Use:   "post <path>",
	Short: "Send a POST request with a JSON body",
	Example: `  mamutesctl api post athletes/ -d '{"first_name": "Rui"}'
  mamutesctl api post athletes/ -d @athlete.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBody(data)
		if err != nil {
			return err
		}
		if body == nil {
			return call(cmd, http.MethodPost, args[0], nil, nil)
		}
		return call(cmd, http.MethodPost, args[0], nil, body)
	},
}

func call(cmd *cobra.Command, method, path string, query url.Values, body any) error {
	c, err := config.MustFromContext(cmd.Context()).ClientProvider.SDKClient(cmd.Context())
	if err != nil {
		return err
	}

	var out json.RawMessage
	if err := c.Do(cmd.Context(), method, path, query, body, &out); err != nil {
		return err
	}
	if len(out) == 0 {
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(out)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}

// parseQuery turns key=value pairs into query values; repeated keys accumulate.
func parseQuery(pairs []string) (url.Values, error) {
	q := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query parameter %q (want key=value)", pair)
		}
		q.Add(key, value)
	}
	return q, nil
}

// readBody parses the --data argument: inline JSON, or @file to read it from a file.
func readBody(arg string) (json.RawMessage, error) {
	if arg == "" {
		return nil, nil
	}
	raw := []byte(arg)
	if name, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if raw, err = os.ReadFile(name); err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("request body is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func init() {
	getCmd.Flags().StringArrayVarP(&queryParams, "query", "q", nil, "Query parameter key=value (repeatable)")
	postCmd.Flags().StringVarP(&data, "data", "d", "", "JSON body, or @file")
	APICmd.AddCommand(getCmd)
	APICmd.AddCommand(postCmd)
}
