package sessionstore

import "docassembly-sdk/internal/common/validation"

var recordSchema = validation.MustCompile(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "snapshot", "createdAt", "updatedAt"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "packageId": {"type": "string"},
    "billingRef": {"type": "string"},
    "createdAt": {"type": "string"},
    "updatedAt": {"type": "string"},
    "snapshot": {
      "type": "object",
      "required": ["version", "template", "answers", "items"],
      "properties": {
        "version": {"type": "integer", "minimum": 1},
        "template": {"type": "string", "minLength": 1},
        "answers": {"type": "string"},
        "items": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["kind", "template", "completed"],
            "properties": {
              "kind": {"enum": ["interview", "document"]},
              "template": {"type": "string", "minLength": 1},
              "completed": {"type": "boolean"},
              "unansweredVariables": {"type": "array", "items": {"type": "string"}}
            }
          }
        }
      }
    }
  }
}`)
