package mirrornode

// AccountBalance is the balance block of an account response.
type AccountBalance struct {
	Balance   int64  `json:"balance"`
	Timestamp string `json:"timestamp"`
}

// AccountInfo is the subset of /api/v1/accounts/{idOrAlias} the client reads.
type AccountInfo struct {
	Account    string          `json:"account"`
	EVMAddress string          `json:"evm_address"`
	Alias      *string         `json:"alias"`
	Deleted    bool            `json:"deleted"`
	Balance    *AccountBalance `json:"balance"`
}

type errorMessage struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Status struct {
		Messages []errorMessage `json:"messages"`
	} `json:"_status"`
}
