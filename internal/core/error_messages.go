package core

// error_messages.go maps technical errors to user-friendly messages with codes
// for support reference. When users encounter errors, they can quote the code
// to support staff for faster diagnosis.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum size (50MB)
//	FILE002 - Unsupported format: Only .xlsx, .xls and .csv files are accepted
//	FILE003 - Empty file: The uploaded file has no content
//	FILE004 - No file: No file was selected
//	FILE005 - No worksheets: The workbook contains no worksheet
//	FILE006 - Unreadable workbook: The workbook could not be decoded
//	FILE007 - Unreadable text file: The delimited file could not be parsed
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Quantity: Quantity missing, zero or negative
//	VAL002 - Required text: Description or unit of measure missing
//	VAL003 - Price: Unit or total price negative
//	VAL004 - Line number: Line number is not positive
//
// # Parsing Errors (PRS001-PRS099)
//
//	PRS001 - No data: The file has no rows, or nothing after the header
//	PRS002 - Row failure: A row could not be built
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy: Too many files are being parsed
//	UPL002 - Run expired: The run id is unknown or has been cleaned up
//	UPL003 - Request cancelled
//	UPL004 - Request timeout
//	UPL005 - Run in progress: The result was requested before the run finished
//
// Anything else maps to ERR000.

import "strings"

type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched in order; the first contained pattern wins.
var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit (50MB)",
			Action:  "Split the bill of quantities into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload an .xlsx, .xls or .csv file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "file is empty",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a file that contains a header row and items",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "no worksheets found",
		msg: UserMessage{
			Message: "The workbook contains no worksheets",
			Action:  "Check that the file opens in a spreadsheet program",
			Code:    "FILE005",
		},
	},
	{
		pattern: "spreadsheet decode",
		msg: UserMessage{
			Message: "The workbook could not be read",
			Action:  "Save the file as .xlsx (Excel Workbook) and try again",
			Code:    "FILE006",
		},
	},
	{
		pattern: "delimited_text decode",
		msg: UserMessage{
			Message: "The text file could not be parsed",
			Action:  "Check for unbalanced quotes or export the sheet as CSV again",
			Code:    "FILE007",
		},
	},

	// Validation errors
	{
		pattern: "quantity must be",
		msg: UserMessage{
			Message: "Quantity is missing or not positive",
			Action:  "Enter a quantity greater than zero",
			Code:    "VAL001",
		},
	},
	{
		pattern: "is required",
		msg: UserMessage{
			Message: "A required value is empty",
			Action:  "Every item needs a description and a unit of measure",
			Code:    "VAL002",
		},
	},
	{
		pattern: "must be a non-negative",
		msg: UserMessage{
			Message: "Prices cannot be negative",
			Action:  "Correct the unit or total price",
			Code:    "VAL003",
		},
	},
	{
		pattern: "linenumber must be",
		msg: UserMessage{
			Message: "The line number is invalid",
			Action:  "Please try again or contact support",
			Code:    "VAL004",
		},
	},

	// Parsing errors
	{
		pattern: "no data rows found",
		msg: UserMessage{
			Message: "No items were found after the header row",
			Action:  "Check the header row setting or add items below the header",
			Code:    "PRS001",
		},
	},
	{
		pattern: "file contains no rows",
		msg: UserMessage{
			Message: "No rows were found in the file",
			Action:  "Check that the first worksheet contains the bill of quantities",
			Code:    "PRS001",
		},
	},
	{
		pattern: "unexpected error while building row",
		msg: UserMessage{
			Message: "A row could not be processed",
			Action:  "Review the row for unusual content",
			Code:    "PRS002",
		},
	},

	// Upload errors
	{
		pattern: "too many concurrent parses",
		msg: UserMessage{
			Message: "Too many files are being processed",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Import run not found",
			Action:  "The run may have expired. Please upload the file again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "still in progress",
		msg: UserMessage{
			Message: "The file is still being processed",
			Action:  "Wait for the run to complete, then request the result again",
			Code:    "UPL005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL004",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// Support staff should check application logs for the original error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	return MapMessage(err.Error())
}

// MapMessage maps an error message, such as a ParseError's, the way MapError does.
func MapMessage(msg string) UserMessage {
	if msg == "" {
		return UserMessage{}
	}
	lower := strings.ToLower(msg)
	for _, ep := range errorPatterns {
		if strings.Contains(lower, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}
