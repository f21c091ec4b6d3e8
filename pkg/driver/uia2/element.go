package uia2

import (
	"encoding/json"
	"fmt"
	"time"
)

// FindElements finds all elements matching the wire strategy.
func (c *Client) FindElements(strategy, selector string) ([]string, error) {
	req := FindElementRequest{
		Strategy: strategy,
		Selector: selector,
	}

	data, err := c.request("POST", c.sessionPath("/elements"), req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Value []struct {
			ELEMENT string `json:"ELEMENT"`
		} `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse elements response: %w", err)
	}

	refs := make([]string, len(resp.Value))
	for i, v := range resp.Value {
		refs[i] = v.ELEMENT
	}
	return refs, nil
}

// ElementClick taps the element.
func (c *Client) ElementClick(ref string) error {
	_, err := c.request("POST", c.sessionPath("/element/"+ref+"/click"), nil)
	return err
}

// ElementClear clears the element's text via the driver's clear call.
func (c *Client) ElementClear(ref string) error {
	_, err := c.request("POST", c.sessionPath("/element/"+ref+"/clear"), nil)
	return err
}

// ElementSendKeys types text into the element.
func (c *Client) ElementSendKeys(ref, text string) error {
	req := InputTextRequest{Text: text}
	_, err := c.request("POST", c.sessionPath("/element/"+ref+"/value"), req)
	return err
}

// ElementText returns the element's text content.
func (c *Client) ElementText(ref string) (string, error) {
	data, err := c.request("GET", c.sessionPath("/element/"+ref+"/text"), nil)
	if err != nil {
		return "", err
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", err
	}

	text, _ := resp.Value.(string)
	return text, nil
}

// ElementAttribute returns an element attribute.
func (c *Client) ElementAttribute(ref, name string) (string, error) {
	data, err := c.request("GET", c.sessionPath("/element/"+ref+"/attribute/"+name), nil)
	if err != nil {
		return "", err
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", err
	}

	attr, _ := resp.Value.(string)
	return attr, nil
}

// ElementRect returns the element's bounds.
func (c *Client) ElementRect(ref string) (ElementRect, error) {
	data, err := c.request("GET", c.sessionPath("/element/"+ref+"/rect"), nil)
	if err != nil {
		return ElementRect{}, err
	}

	var resp struct {
		Value ElementRect `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return ElementRect{}, err
	}

	return resp.Value, nil
}

// ElementDisplayed checks if the element is visible.
func (c *Client) ElementDisplayed(ref string) (bool, error) {
	attr, err := c.ElementAttribute(ref, "displayed")
	if err != nil {
		return false, err
	}
	return attr == "true", nil
}

// Click taps raw screen coordinates.
func (c *Client) Click(x, y int) error {
	req := ClickRequest{Offset: &PointModel{X: x, Y: y}}
	_, err := c.request("POST", c.sessionPath("/appium/gestures/click"), req)
	return err
}

// LongClickElement issues the native long-press gesture on an element.
func (c *Client) LongClickElement(ref string, duration time.Duration) error {
	req := LongClickRequest{
		Origin:   &ElementModel{ELEMENT: ref},
		Duration: int(duration.Milliseconds()),
	}
	_, err := c.request("POST", c.sessionPath("/appium/gestures/long_click"), req)
	return err
}

// Drag performs a point-to-point swipe.
func (c *Client) Drag(startX, startY, endX, endY, speed int) error {
	req := DragRequest{
		Start: &PointModel{X: startX, Y: startY},
		EndX:  endX,
		EndY:  endY,
		Speed: speed,
	}
	_, err := c.request("POST", c.sessionPath("/appium/gestures/drag"), req)
	return err
}

// PressKeyCode sends a key event.
func (c *Client) PressKeyCode(code int) error {
	req := KeyCodeRequest{KeyCode: code}
	_, err := c.request("POST", c.sessionPath("/appium/device/press_keycode"), req)
	return err
}

// WindowSize returns the screen dimensions.
func (c *Client) WindowSize() (int, int, error) {
	data, err := c.request("GET", c.sessionPath("/window/:windowHandle/size"), nil)
	if err != nil {
		return 0, 0, err
	}

	var resp struct {
		Value struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, 0, err
	}

	return resp.Value.Width, resp.Value.Height, nil
}
