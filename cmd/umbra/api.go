package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/realDragonium/Umbra/worker"
	"github.com/spf13/cobra"
)

var apiClient = &http.Client{Timeout: 10 * time.Second}

func reloadCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Make the running proxy read the server configs again",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(*configPath, http.MethodPost, "/reload")
			if err != nil {
				return err
			}
			fmt.Print(string(body))
			return nil
		},
	}
}

func backendsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the backends of the running proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(*configPath, http.MethodGet, "/backends")
			if err != nil {
				return err
			}
			var infos []worker.BackendInfo
			if err := json.Unmarshal(body, &infos); err != nil {
				return fmt.Errorf("decoding backends: %w", err)
			}
			printBackends(os.Stdout, infos)
			return nil
		},
	}
}

func printBackends(w io.Writer, infos []worker.BackendInfo) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Name", "Domains", "Proxy To", "Forwarding", "State", "Online"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	for _, info := range infos {
		tw.Append([]string{
			info.Name,
			strings.Join(info.Domains, ", "),
			info.ProxyTo,
			info.Forwarding,
			info.State,
			strconv.Itoa(info.Online),
		})
	}
	tw.Render()
}

// callAPI finds the API through the main config of the running proxy.
func callAPI(configPath, method, path string) ([]byte, error) {
	cfg, err := readMainConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading main config in %s: %w", configPath, err)
	}
	if cfg.APIBind == "" {
		return nil, fmt.Errorf("the api is disabled in %s", configPath)
	}
	req, err := http.NewRequest(method, fmt.Sprintf("http://%s%s", cfg.APIBind, path), nil)
	if err != nil {
		return nil, err
	}
	resp, err := apiClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}
