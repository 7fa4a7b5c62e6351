package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hitoshi/invman/internal/session"
)

// NewProductsCmd はproductsサブコマンドを生成する。
func NewProductsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List all products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *session.Client) error {
				products, err := c.ListProducts(ctx)
				if err != nil {
					return err
				}
				return printProducts(cmd.OutOrStdout(), products)
			})
		},
	}
}

// NewLatestCmd はlatestサブコマンドを生成する。
func NewLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "List the most recently added products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *session.Client) error {
				products, err := c.LatestProducts(ctx)
				if err != nil {
					return err
				}
				return printProducts(cmd.OutOrStdout(), products)
			})
		},
	}
}

func printProducts(w io.Writer, products []session.Product) error {
	if len(products) == 0 {
		_, err := fmt.Fprintln(w, "No products")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSKU\tNAME\tPRICE\tQTY\tIMAGE")
	for _, p := range products {
		image := "-"
		if p.Image != nil {
			image = *p.Image
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%s\n", p.ID, p.SKU, p.Name, p.Price, p.Quantity, image)
	}
	return tw.Flush()
}
