package config

// Schema describes the shape of shellm.json. Unknown keys are rejected so typos
// surface instead of silently falling back to defaults.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "data_dir": {"type": "string"},
    "exec": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "max_tag_length": {"type": "integer"},
        "log_path": {"type": "string"},
        "max_output_bytes": {"type": "integer", "minimum": 1},
        "wait_timeout": {"type": "string", "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$|^0$"},
        "on_eof": {"type": "string", "enum": ["close", "fail"]}
      }
    },
    "chat": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "provider": {"type": "string", "enum": ["openai", "anthropic"]},
        "model": {"type": "string"},
        "base_url": {"type": "string"},
        "api_key": {"type": "string"},
        "system_prompt": {"type": "string"},
        "max_tokens": {"type": "integer", "minimum": 1},
        "temperature": {"type": "number", "minimum": 0, "maximum": 2}
      }
    },
    "history": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "path": {"type": "string"},
        "max_messages": {"type": "integer", "minimum": 0}
      }
    },
    "memory": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "db_path": {"type": "string"},
        "embedding_model": {"type": "string"},
        "base_url": {"type": "string"},
        "api_key": {"type": "string"},
        "limit": {"type": "integer", "minimum": 1}
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "file": {"type": "string"},
        "console": {"type": "boolean"},
        "pretty": {"type": "boolean"},
        "max_size": {"type": "integer", "minimum": 0},
        "max_age": {"type": "integer", "minimum": 0},
        "compress": {"type": "boolean"},
        "redaction": {"type": "boolean"}
      }
    },
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "listen": {"type": "string"}
      }
    }
  }
}`
