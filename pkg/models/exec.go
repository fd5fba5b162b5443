package models

// ExecRequest is the /api/ssh request body. All fields come from the
// caller and are treated as hostile input.
type ExecRequest struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
	Command  string `json:"command"`
}

// ExecResponse carries the combined output of one remote command.
type ExecResponse struct {
	Output string `json:"output"`
}
