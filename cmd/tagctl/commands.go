package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"knowhub_tags/pkg/database"

	"github.com/spf13/cobra"
)

func parseTagID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid tag id %q", arg)
	}
	return id, nil
}

// parseTagIDs 按顺序解析全部参数
func parseTagIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseTagID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}

func (c *cli) getCmd() *cobra.Command {
	var languages string
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get a tag by ID",
		Example: `  tagctl get 12
  tagctl get 12 --lang eng-GB,ita-IT`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTagID(args[0])
			if err != nil {
				return err
			}
			var translations []string
			for _, lang := range strings.Split(languages, ",") {
				if lang = strings.TrimSpace(lang); lang != "" {
					translations = append(translations, lang)
				}
			}
			tag, err := c.svc.Load(id, translations...)
			if err != nil {
				return err
			}
			return printJSON(cmd, tag)
		},
	}
	cmd.Flags().StringVar(&languages, "lang", "", "comma separated language codes (default: all)")
	return cmd
}

func (c *cli) childrenCmd() *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "children <id>",
		Short: "List the children of a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTagID(args[0])
			if err != nil {
				return err
			}
			children, err := c.svc.LoadChildren(id, offset, limit)
			if err != nil {
				return err
			}
			total, err := c.svc.GetChildrenCount(id)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{"items": children, "total": total})
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "number of children to skip")
	cmd.Flags().IntVar(&limit, "limit", -1, "maximum number of children, -1 for all")
	return cmd
}

func (c *cli) treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <id>",
		Short: "Print the subtree rooted at a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTagID(args[0])
			if err != nil {
				return err
			}
			tree, err := c.svc.LoadSubtree(id)
			if err != nil {
				return err
			}
			return printJSON(cmd, tree)
		},
	}
}

func (c *cli) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <destination-parent-id>",
		Short: "Move a subtree under another tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseTagIDs(args)
			if err != nil {
				return err
			}
			moved, err := c.svc.MoveSubtree(ids[0], ids[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, moved)
		},
	}
}

func (c *cli) copyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <id> <destination-parent-id>",
		Short: "Copy a subtree, synonyms included, under another tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseTagIDs(args)
			if err != nil {
				return err
			}
			copied, err := c.svc.CopySubtree(ids[0], ids[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, copied)
		},
	}
}

func (c *cli) mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <id> <target-id>",
		Short: "Merge a tag into the target tag and delete it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseTagIDs(args)
			if err != nil {
				return err
			}
			if err := c.svc.Merge(ids[0], ids[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged tag %d into %d\n", ids[0], ids[1])
			return nil
		},
	}
}

func (c *cli) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <id> <main-tag-id>",
		Short: "Convert a tag into a synonym of the main tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseTagIDs(args)
			if err != nil {
				return err
			}
			converted, err := c.svc.ConvertToSynonym(ids[0], ids[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, converted)
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a tag with its whole subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTagID(args[0])
			if err != nil {
				return err
			}
			if err := c.svc.DeleteTag(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted tag %d\n", id)
			return nil
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the tag tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.db == nil {
				return fmt.Errorf("no database connection")
			}
			if err := database.RunMigrate(c.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations completed")
			return nil
		},
	}
}
