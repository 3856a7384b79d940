package shopify

// OrderCancelMutation cancels an order without refunding or restocking; those are separate decisions.
const OrderCancelMutation = `
mutation orderCancel($orderId: ID!, $reason: OrderCancelReason!, $refund: Boolean!, $restock: Boolean!, $notifyCustomer: Boolean, $staffNote: String) {
  orderCancel(orderId: $orderId, reason: $reason, refund: $refund, restock: $restock, notifyCustomer: $notifyCustomer, staffNote: $staffNote) {
    job {
      id
      done
    }
    orderCancelUserErrors {
      field
      message
      code
    }
  }
}
`

// RefundCreateMutation refunds part of an order back to the original payment method
const RefundCreateMutation = `
mutation refundCreate($input: RefundInput!) {
  refundCreate(input: $input) {
    refund {
      id
      totalRefundedSet {
        shopMoney {
          amount
          currencyCode
        }
      }
    }
    userErrors {
      field
      message
    }
  }
}
`

// StoreCreditAccountCreditMutation issues store credit to a customer (id is the customer GID)
const StoreCreditAccountCreditMutation = `
mutation storeCreditAccountCredit($id: ID!, $creditInput: StoreCreditAccountCreditInput!) {
  storeCreditAccountCredit(id: $id, creditInput: $creditInput) {
    storeCreditAccountTransaction {
      amount {
        amount
        currencyCode
      }
    }
    userErrors {
      field
      message
      code
    }
  }
}
`

// InventoryAdjustQuantitiesMutation applies a delta to the available quantity of an inventory item
const InventoryAdjustQuantitiesMutation = `
mutation inventoryAdjustQuantities($input: InventoryAdjustQuantitiesInput!) {
  inventoryAdjustQuantities(input: $input) {
    inventoryAdjustmentGroup {
      reason
      changes {
        name
        delta
      }
    }
    userErrors {
      field
      message
    }
  }
}
`

// RefundInput is the input for refundCreate
type RefundInput struct {
	OrderID      string                  `json:"orderId"`
	Note         string                  `json:"note,omitempty"`
	Notify       bool                    `json:"notify"`
	Transactions []OrderTransactionInput `json:"transactions"`
}

// OrderTransactionInput refunds against a parent SALE/CAPTURE transaction
type OrderTransactionInput struct {
	OrderID  string `json:"orderId"`
	ParentID string `json:"parentId"`
	Amount   string `json:"amount"`
	Gateway  string `json:"gateway"`
	Kind     string `json:"kind"`
}

// StoreCreditAccountCreditInput is the input for storeCreditAccountCredit
type StoreCreditAccountCreditInput struct {
	CreditAmount MoneyInput `json:"creditAmount"`
}

// MoneyInput is Shopify's MoneyInput
type MoneyInput struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// InventoryAdjustQuantitiesInput is the input for inventoryAdjustQuantities
type InventoryAdjustQuantitiesInput struct {
	Reason  string                 `json:"reason"`
	Name    string                 `json:"name"`
	Changes []InventoryChangeInput `json:"changes"`
}

// InventoryChangeInput is one inventory delta at a location
type InventoryChangeInput struct {
	Delta           int    `json:"delta"`
	InventoryItemID string `json:"inventoryItemId"`
	LocationID      string `json:"locationId"`
}
