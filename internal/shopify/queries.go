package shopify

// OrderByNameQueryTemplate fetches one order with everything a refund decision needs.
// The query parameter must be a string literal, not a variable, so the search
// string (e.g. name:#42234) is interpolated with fmt.Sprintf.
const OrderByNameQueryTemplate = `
query getOrderByName {
  orders(first: 1, query: "%s") {
    edges {
      node {
        id
        name
        createdAt
        cancelledAt
        totalPriceSet {
          shopMoney {
            amount
            currencyCode
          }
        }
        totalRefundedSet {
          shopMoney {
            amount
          }
        }
        customer {
          id
          firstName
          lastName
          email
        }
        lineItems(first: 50) {
          edges {
            node {
              title
              quantity
              variant {
                id
              }
              product {
                id
                title
                handle
                seasonStart: metafield(namespace: "league", key: "season_start_date") {
                  value
                }
                offDates: metafield(namespace: "league", key: "off_dates") {
                  value
                }
                variants(first: 25) {
                  nodes {
                    id
                    title
                    inventoryQuantity
                    inventoryItem {
                      id
                    }
                  }
                }
              }
            }
          }
        }
        refunds(first: 20) {
          id
          createdAt
          totalRefundedSet {
            shopMoney {
              amount
            }
          }
        }
      }
    }
  }
}
`

// OrderTransactionsQuery fetches the transactions a refund is issued against
const OrderTransactionsQuery = `
query getOrderTransactions($id: ID!) {
  order(id: $id) {
    id
    customer {
      id
    }
    totalPriceSet {
      shopMoney {
        currencyCode
      }
    }
    transactions(first: 20) {
      id
      kind
      status
      gateway
      amountSet {
        shopMoney {
          amount
        }
      }
    }
  }
}
`

// VariantInventoryItemQuery resolves the inventory item behind a variant (needed to adjust quantities)
const VariantInventoryItemQuery = `
query getVariantInventoryItem($id: ID!) {
  productVariant(id: $id) {
    id
    title
    inventoryItem {
      id
    }
  }
}
`

// ProductStockByInventoryItemQuery walks from an inventory item to its product and sibling variants.
// Used by the waitlist notifier on inventory_levels/update webhooks.
const ProductStockByInventoryItemQuery = `
query getProductStockByInventoryItem($id: ID!) {
  inventoryItem(id: $id) {
    id
    variant {
      id
      product {
        id
        title
        handle
        tags
        variants(first: 25) {
          nodes {
            id
            title
            inventoryQuantity
          }
        }
      }
    }
  }
}
`
